// internal/pipeline/web-augmentation/config.go
package webaugmentation

import "time"

type Config struct {
	Timeout       time.Duration
	DecideTimeout time.Duration
	MaxResults    int
	MaxPages      int
	MaxChars      int
	Temperature   float32
	MaxTokens     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       45 * time.Second,
		DecideTimeout: 10 * time.Second,
		MaxResults:    6,
		MaxPages:      3,
		MaxChars:      3000,
		Temperature:   0.3,
		MaxTokens:     1200,
	}
}
