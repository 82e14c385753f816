package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Host      HostConfig      `json:"host"`
	Ticker    TickerConfig    `json:"ticker"`
	DevTools  DevToolsConfig  `json:"devtools"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Storage   StorageConfig   `json:"storage"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HostConfig controls the frame loop.
type HostConfig struct {
	// RefreshRate is the loop frequency in Hz. 0 means 60.
	RefreshRate int `json:"refresh_rate,omitempty"`
}

// TickerConfig controls the frame scheduler.
//
// Visibility is a pointer so an omitted key (default on) differs from an
// explicit false.
type TickerConfig struct {
	Limit      int     `json:"limit,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Visibility *bool   `json:"visibility,omitempty"`
}

// VisibilityEnabled reports whether the scheduler should follow host
// visibility. Defaults to true.
func (t TickerConfig) VisibilityEnabled() bool {
	return t.Visibility == nil || *t.Visibility
}

// EffectiveSpeed maps the zero value to 1.
func (t TickerConfig) EffectiveSpeed() float64 {
	if t.Speed == 0 {
		return 1
	}
	return t.Speed
}

// DevToolsConfig controls the diagnostics subsystem.
//
// Defaults (when fields are omitted/zero):
//   - stats_schedule: "@every 30s"
//   - warn_fps: 0 (fps watch disabled)
//   - warn_for: "3s"
type DevToolsConfig struct {
	Enabled       bool    `json:"enabled"`
	StatsSchedule string  `json:"stats_schedule,omitempty"`
	WarnFPS       float64 `json:"warn_fps,omitempty"`
	WarnFor       string  `json:"warn_for,omitempty"`
}

// HeartbeatConfig controls the heartbeat subsystem.
//
// Defaults: every "10s", beats 0 (forever).
type HeartbeatConfig struct {
	Enabled bool   `json:"enabled"`
	Every   string `json:"every,omitempty"`
	Beats   int    `json:"beats,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/framekit.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
