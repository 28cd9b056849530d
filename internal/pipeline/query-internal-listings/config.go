// internal/pipeline/query-internal-listings/config.go
package queryinternallistings

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	PerTable int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  5 * time.Second,
		CacheTTL: 10 * time.Minute,
		PerTable: 3,
	}
}
