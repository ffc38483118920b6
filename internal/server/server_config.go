package server

import (
	"fmt"

	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:8090"
	DefaultRateLimit = "50-S"
)

// Config configures the development ledger server.
type Config struct {
	Addr      string `mapstructure:"addr"`
	RateLimit string `mapstructure:"rate_limit"` // ulule/limiter format, e.g. "50-S"
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server: addr is required")
	}
	if c.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
			return fmt.Errorf("server: rate_limit: %w", err)
		}
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("server: cert_file and key_file must be set together")
	}
	return nil
}
