// internal/workers/inquiry/build-buyer-profile/config.go
package buildbuyerprofile

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
