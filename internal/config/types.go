package config

import "os"

// Config is the runner's own ambient configuration: logging, the
// optional health endpoint and dashboard, default retry/timeout
// behavior new jobs fall back to, and shutdown behavior. Job
// definitions themselves are not part of this file; they come from the
// job-discovery collaborator described in the external interfaces.
type Config struct {
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Health    HealthConfig    `json:"health" yaml:"health"`
	Dashboard DashboardConfig `json:"dashboard" yaml:"dashboard"`

	// Timezone is an IANA zone name, checked by the app's validator when
	// set. It is not applied to jobs: a ScheduleDescriptor without its
	// own Timezone is evaluated in UTC.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// ShutdownTimeout is a Go duration string bounding how long the
	// worker waits for in-flight runs during graceful shutdown.
	// Default "30s" when empty.
	ShutdownTimeout string `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`

	// DefaultTimeout is a Go duration string, checked by the app's
	// validator. Default "5m". It is not applied to jobs: a job that
	// leaves JobConfig.Timeout unset gets the engine's own 5-minute
	// default.
	DefaultTimeout string `json:"default_timeout,omitempty" yaml:"default_timeout,omitempty"`

	// DefaultRetry holds retry defaults, checked by the app's validator.
	// It is not applied to jobs: a job without its own RetryConfig gets
	// the engine's zero-value default of a single attempt.
	DefaultRetry *RetryDefaults `json:"default_retry,omitempty" yaml:"default_retry,omitempty"`

	// HistorySize is a per-job run-history size. Default 50. The
	// dashboard does not read it; it always retains 50 runs per job.
	HistorySize int `json:"history_size,omitempty" yaml:"history_size,omitempty"`
}

// LoggingConfig controls the zerolog writer set up at startup.
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level"`                         // debug|info|warn|error; default info
	Console bool   `json:"console,omitempty" yaml:"console,omitempty"` // pretty console writer instead of JSON
}

// HealthConfig controls the optional /health endpoint. It is off unless
// Enabled is set, in library embedding and in the cronrunner binary alike.
type HealthConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"` // default ":8080", or $PORT when set
}

// DashboardConfig controls the optional read-only operator HTTP/SSE
// adapter.
type DashboardConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"` // default ":4590"
}

// RetryDefaults mirrors registry.RetryConfig's shape without importing
// the registry package, so config stays a leaf dependency in the graph.
type RetryDefaults struct {
	Attempts     int    `json:"attempts" yaml:"attempts"`
	Backoff      string `json:"backoff,omitempty" yaml:"backoff,omitempty"`             // "linear"|"exponential"
	InitialDelay string `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"` // Go duration string, default "1s"
}

// Defaults fills in the zero-value fields every caller can assume are
// populated after Load.
func (c *Config) Defaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.DefaultTimeout == "" {
		c.DefaultTimeout = "5m"
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	if c.Health.Enabled && c.Health.Addr == "" {
		c.Health.Addr = ":8080"
		if port := os.Getenv("PORT"); port != "" {
			c.Health.Addr = ":" + port
		}
	}
	if c.Dashboard.Enabled && c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":4590"
	}
}
