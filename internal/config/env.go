package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Overrides are environment variables applied on top of the file.
// Pointer fields distinguish "unset" from an explicit zero.
type Overrides struct {
	LogLevel      string   `env:"FRAMEKIT_LOG_LEVEL"`
	TickerLimit   *int     `env:"FRAMEKIT_TICKER_LIMIT"`
	TickerSpeed   *float64 `env:"FRAMEKIT_TICKER_SPEED"`
	StorageDriver string   `env:"FRAMEKIT_STORAGE_DRIVER"`
	StoragePath   string   `env:"FRAMEKIT_STORAGE_PATH"`
}

// ParseOverrides loads Overrides from the process environment.
func ParseOverrides() (Overrides, error) {
	var o Overrides
	if err := env.Parse(&o); err != nil {
		return Overrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// Apply writes the set overrides into cfg.
func (o Overrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if s := strings.TrimSpace(o.LogLevel); s != "" {
		cfg.Logging.Level = s
	}
	if o.TickerLimit != nil {
		cfg.Ticker.Limit = *o.TickerLimit
	}
	if o.TickerSpeed != nil {
		cfg.Ticker.Speed = *o.TickerSpeed
	}
	if s := strings.TrimSpace(o.StorageDriver); s != "" {
		cfg.Storage.Driver = s
	}
	if s := strings.TrimSpace(o.StoragePath); s != "" {
		cfg.Storage.Path = s
	}
}

// ApplyEnv parses the environment and applies it to cfg.
func ApplyEnv(cfg *Config) error {
	o, err := ParseOverrides()
	if err != nil {
		return err
	}
	o.Apply(cfg)
	return nil
}
