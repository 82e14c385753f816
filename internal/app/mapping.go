package app

import (
	"strings"

	"framekit/internal/config"
	"framekit/internal/frame"
	"framekit/internal/storage"
	"framekit/plugins/devtools"
	"framekit/plugins/heartbeat"
	logx "framekit/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTickerConfig(cfg *config.Config) frame.Config {
	return frame.Config{
		Limit:      cfg.Ticker.Limit,
		Speed:      cfg.Ticker.EffectiveSpeed(),
		Visibility: cfg.Ticker.VisibilityEnabled(),
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	out := storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path)}
	if driver == "sqlite" || driver == "sqlite3" {
		busy, err := sc.BusyTimeoutDuration()
		if err != nil {
			return storage.Config{}, err
		}
		if busy <= 0 {
			busy = defaultBusyTimeout
		}
		out.BusyTimeout = busy
	}
	return out, nil
}

func mapDevToolsConfig(cfg *config.Config) (devtools.Config, error) {
	warnFor, err := cfg.DevTools.WarnForDuration()
	if err != nil {
		return devtools.Config{}, err
	}
	return devtools.Config{
		Schedule: cfg.DevTools.Schedule(),
		WarnFPS:  cfg.DevTools.WarnFPS,
		WarnFor:  warnFor,
	}, nil
}

func mapHeartbeatConfig(cfg *config.Config) (heartbeat.Config, error) {
	every, err := cfg.Heartbeat.EveryDuration()
	if err != nil {
		return heartbeat.Config{}, err
	}
	return heartbeat.Config{Every: every, Beats: cfg.Heartbeat.Beats}, nil
}
