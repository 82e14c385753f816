package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/robfig/cron/v3"

	logx "framekit/pkg/logx"
)

// CronParser is the schedule grammar accepted by devtools.stats_schedule:
// standard 5-field specs, an optional leading seconds field, and
// descriptors such as "@every 30s".
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks field ranges and formats. It reports every problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add("logging.file.path: required when file logging is enabled")
	}
	if cfg.Host.RefreshRate < 0 || cfg.Host.RefreshRate > 1000 {
		add("host.refresh_rate: must be within [0,1000], got %d", cfg.Host.RefreshRate)
	}
	if cfg.Ticker.Limit < 0 {
		add("ticker.limit: must be >= 0, got %d", cfg.Ticker.Limit)
	}
	if cfg.Ticker.Speed < 0 || math.IsNaN(cfg.Ticker.Speed) || math.IsInf(cfg.Ticker.Speed, 0) {
		add("ticker.speed: must be a finite value >= 0, got %v", cfg.Ticker.Speed)
	}

	if cfg.DevTools.Enabled {
		if _, err := CronParser.Parse(cfg.DevTools.Schedule()); err != nil {
			add("devtools.stats_schedule: %v", err)
		}
	}
	if cfg.DevTools.WarnFPS < 0 {
		add("devtools.warn_fps: must be >= 0")
	}
	if _, err := cfg.DevTools.WarnForDuration(); err != nil {
		errs = append(errs, err)
	}

	if _, err := cfg.Heartbeat.EveryDuration(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Heartbeat.Beats < 0 {
		add("heartbeat.beats: must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none", "memory", "mem":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path: required for driver %q", cfg.Storage.Driver)
		}
	default:
		add("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := cfg.Storage.BusyTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validator adapts Validate to Manager.SetValidator.
func Validator(_ context.Context, cfg *Config) error { return Validate(cfg) }
