// internal/pipeline/featured-match/config.go
package featuredmatch

import "time"

type Config struct {
	Timeout    time.Duration
	ScanLimit  int
	MaxMatches int
	MaxShown   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    5 * time.Second,
		ScanLimit:  50,
		MaxMatches: 6,
		MaxShown:   3,
	}
}
