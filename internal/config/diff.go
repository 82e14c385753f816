package config

import (
	"strings"

	logx "framekit/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and structured
// attrs describing their new values, for a single reload log line.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Host.RefreshRate != newCfg.Host.RefreshRate {
		// Applied on restart only.
		changed = append(changed, "host")
		attrs = append(attrs, logx.Int("host.refresh_rate", newCfg.Host.RefreshRate))
	}

	if oldCfg.Ticker.Limit != newCfg.Ticker.Limit ||
		oldCfg.Ticker.EffectiveSpeed() != newCfg.Ticker.EffectiveSpeed() ||
		oldCfg.Ticker.VisibilityEnabled() != newCfg.Ticker.VisibilityEnabled() {
		changed = append(changed, "ticker")
		attrs = append(attrs,
			logx.Int("ticker.limit", newCfg.Ticker.Limit),
			logx.Float64("ticker.speed", newCfg.Ticker.EffectiveSpeed()),
			logx.Bool("ticker.visibility", newCfg.Ticker.VisibilityEnabled()),
		)
	}

	if oldCfg.DevTools != newCfg.DevTools {
		changed = append(changed, "devtools")
		attrs = append(attrs,
			logx.Bool("devtools.enabled", newCfg.DevTools.Enabled),
			logx.String("devtools.stats_schedule", newCfg.DevTools.StatsSchedule),
			logx.Float64("devtools.warn_fps", newCfg.DevTools.WarnFPS),
		)
	}

	if oldCfg.Heartbeat != newCfg.Heartbeat {
		changed = append(changed, "heartbeat")
		attrs = append(attrs,
			logx.Bool("heartbeat.enabled", newCfg.Heartbeat.Enabled),
			logx.String("heartbeat.every", newCfg.Heartbeat.Every),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		// Applied on restart only.
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}

	return changed, attrs
}
