// internal/pipeline/followups/config.go
package followups

import "time"

type Config struct {
	Timeout        time.Duration
	Temperature    float32
	MaxTokens      int
	MaxAnswerChars int

	// Limit caps the list below MaxFollowups when set.
	Limit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        15 * time.Second,
		Temperature:    0.7,
		MaxTokens:      300,
		MaxAnswerChars: 4000,
		Limit:          MaxFollowups,
	}
}
