// Package config provides configuration loading and validation for nexcron.
// It reads a TOML file with environment variable expansion, default values
// and validation.
//
// Configuration structure:
//   - [scheduler]: cycle budget, concurrency, resource ceilings and locks
//   - [logging]: logging level, format, and output
//   - [metrics]: Prometheus textfile export
//   - [jobs]: job definition file and built-in jobs
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, for example: lock_directory = "${NEXCRON_LOCKS:/run/nexcron}"
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Jobs      JobsConfig      `toml:"jobs"`

	unknownKeys []string
}

// SchedulerConfig holds the options of one scheduling cycle. Durations are
// whole seconds, memory is in megabytes.
type SchedulerConfig struct {
	GlobalTimeout       int     `toml:"global_timeout"`
	MaxConcurrentJobs   int     `toml:"max_concurrent_jobs"`
	CleanupStaleLocks   bool    `toml:"cleanup_stale_locks"`
	SkipOnHighLoad      bool    `toml:"skip_on_high_load"`
	MaxLoadAverage      float64 `toml:"max_load_average"`
	MaxMemoryUsage      int     `toml:"max_memory_usage"`
	DefaultJobTimeout   int     `toml:"default_job_timeout"`
	LockDirectory       string  `toml:"lock_directory"`
	LockCleanupInterval int     `toml:"lock_cleanup_interval"`
}

// GlobalTimeoutDuration returns GlobalTimeout as a duration.
func (c SchedulerConfig) GlobalTimeoutDuration() time.Duration {
	return time.Duration(c.GlobalTimeout) * time.Second
}

// DefaultJobTimeoutDuration returns DefaultJobTimeout as a duration.
func (c SchedulerConfig) DefaultJobTimeoutDuration() time.Duration {
	return time.Duration(c.DefaultJobTimeout) * time.Second
}

// LockCleanupIntervalDuration returns LockCleanupInterval as a duration.
func (c SchedulerConfig) LockCleanupIntervalDuration() time.Duration {
	return time.Duration(c.LockCleanupInterval) * time.Second
}

// LoggingConfig is the logger configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig controls the node_exporter textfile written after a cycle.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Textfile  string `toml:"textfile"`
	Namespace string `toml:"namespace"`
}

// JobsConfig points at the job definitions.
type JobsConfig struct {
	File string `toml:"file"`

	// SweepSchedule registers the built-in lock sweep job when set. Useful
	// with cleanup_stale_locks = false.
	SweepSchedule string `toml:"sweep_schedule"`
}
