// internal/pipeline/answer-generator/config.go
package answergenerator

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		Temperature: 0.6,
		MaxTokens:   1200,
	}
}
