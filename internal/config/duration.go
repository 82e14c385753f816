package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied when duration fields are omitted.
const (
	DefaultStatsSchedule  = "@every 30s"
	DefaultWarnFor        = 3 * time.Second
	DefaultHeartbeatEvery = 10 * time.Second
	DefaultRefreshRate    = 60
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

func (d DevToolsConfig) Schedule() string {
	if s := strings.TrimSpace(d.StatsSchedule); s != "" {
		return s
	}
	return DefaultStatsSchedule
}

func (d DevToolsConfig) WarnForDuration() (time.Duration, error) {
	return ParseDurationOrDefault("devtools.warn_for", d.WarnFor, DefaultWarnFor)
}

func (h HeartbeatConfig) EveryDuration() (time.Duration, error) {
	return ParseDurationOrDefault("heartbeat.every", h.Every, DefaultHeartbeatEvery)
}

func (s StorageConfig) BusyTimeoutDuration() (time.Duration, error) {
	return ParseDurationField("storage.busy_timeout", s.BusyTimeout)
}

func (h HostConfig) Rate() int {
	if h.RefreshRate <= 0 {
		return DefaultRefreshRate
	}
	return h.RefreshRate
}
