// internal/workers/popularity/recompute-popularity/config.go
package recomputepopularity

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Minute,
	}
}
