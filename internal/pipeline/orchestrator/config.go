// internal/pipeline/orchestrator/config.go
package orchestrator

import "time"

type Config struct {
	// bounds one whole chat turn
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 120 * time.Second,
	}
}
