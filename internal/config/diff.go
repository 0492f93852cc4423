package config

import "cronrunner/internal/logging"

// ConfigChange reports which top-level sections differ between a
// config.Manager's previously committed value and a freshly parsed
// one, plus which long-running servers that change invalidates.
//
// Dashboard and Health each own a listener bound to their Addr at
// Start time; unlike the log level (retunable in place via
// logging.Service.Apply), there's no way to rebind a live
// net.Listener, so a change to either section needs the owning server
// torn down and rebuilt. Logging, by contrast, never sets a restart
// flag — it's folded straight into logSvc.Apply by the caller.
type ConfigChange struct {
	Sections         []string
	Fields           []logging.Field
	DashboardRestart bool
	HealthRestart    bool
}

// SummarizeConfigChange diffs oldCfg against newCfg section by
// section. A nil oldCfg (first load) is compared as a zero Config, so
// every section whose new value differs from its zero value is reported.
func SummarizeConfigChange(oldCfg, newCfg *Config) ConfigChange {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var c ConfigChange

	if oldCfg.Logging.Level != newCfg.Logging.Level || oldCfg.Logging.Console != newCfg.Logging.Console {
		c.Sections = append(c.Sections, "logging")
		c.Fields = append(c.Fields,
			logging.String("logging.level", newCfg.Logging.Level),
			logging.Bool("logging.console", newCfg.Logging.Console))
	}

	if oldCfg.Health.Enabled != newCfg.Health.Enabled || oldCfg.Health.Addr != newCfg.Health.Addr {
		c.Sections = append(c.Sections, "health")
		c.Fields = append(c.Fields,
			logging.Bool("health.enabled", newCfg.Health.Enabled),
			logging.String("health.addr", newCfg.Health.Addr))
		c.HealthRestart = true
	}

	if oldCfg.Dashboard.Enabled != newCfg.Dashboard.Enabled || oldCfg.Dashboard.Addr != newCfg.Dashboard.Addr {
		c.Sections = append(c.Sections, "dashboard")
		c.Fields = append(c.Fields,
			logging.Bool("dashboard.enabled", newCfg.Dashboard.Enabled),
			logging.String("dashboard.addr", newCfg.Dashboard.Addr))
		c.DashboardRestart = true
	}

	if oldCfg.Timezone != newCfg.Timezone {
		c.Sections = append(c.Sections, "timezone")
		c.Fields = append(c.Fields, logging.String("timezone", newCfg.Timezone))
	}

	if oldCfg.ShutdownTimeout != newCfg.ShutdownTimeout {
		c.Sections = append(c.Sections, "shutdown_timeout")
		c.Fields = append(c.Fields, logging.String("shutdown_timeout", newCfg.ShutdownTimeout))
	}

	if oldCfg.DefaultTimeout != newCfg.DefaultTimeout {
		c.Sections = append(c.Sections, "default_timeout")
		c.Fields = append(c.Fields, logging.String("default_timeout", newCfg.DefaultTimeout))
	}

	if !retryDefaultsEqual(oldCfg.DefaultRetry, newCfg.DefaultRetry) {
		c.Sections = append(c.Sections, "default_retry")
		if newCfg.DefaultRetry != nil {
			c.Fields = append(c.Fields,
				logging.Int("default_retry.attempts", newCfg.DefaultRetry.Attempts),
				logging.String("default_retry.backoff", newCfg.DefaultRetry.Backoff))
		}
	}

	if oldCfg.HistorySize != newCfg.HistorySize {
		c.Sections = append(c.Sections, "history_size")
		c.Fields = append(c.Fields, logging.Int("history_size", newCfg.HistorySize))
	}

	return c
}

func retryDefaultsEqual(a, b *RetryDefaults) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
