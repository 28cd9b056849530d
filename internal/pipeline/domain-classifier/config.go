// internal/pipeline/domain-classifier/config.go
package domainclassifier

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  15 * time.Second,
		CacheTTL: 24 * time.Hour,
	}
}
