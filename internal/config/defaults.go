package config

const (
	DefaultGlobalTimeout       = 300
	DefaultMaxConcurrentJobs   = 5
	DefaultMaxLoadAverage      = 10.0
	DefaultMaxMemoryUsage      = 512
	DefaultJobTimeout          = 300
	DefaultLockDirectory       = "/tmp/nexcron/locks"
	DefaultLockCleanupInterval = 3600
	DefaultMetricsTextfile     = "/var/lib/node_exporter/textfile_collector/nexcron.prom"
)

// DefaultSchedulerConfig returns the scheduler options used for absent keys.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		GlobalTimeout:       DefaultGlobalTimeout,
		MaxConcurrentJobs:   DefaultMaxConcurrentJobs,
		CleanupStaleLocks:   true,
		SkipOnHighLoad:      true,
		MaxLoadAverage:      DefaultMaxLoadAverage,
		MaxMemoryUsage:      DefaultMaxMemoryUsage,
		DefaultJobTimeout:   DefaultJobTimeout,
		LockDirectory:       DefaultLockDirectory,
		LockCleanupInterval: DefaultLockCleanupInterval,
	}
}

// Default returns a complete configuration for running without a file.
func Default() *Config {
	cfg := &Config{Scheduler: DefaultSchedulerConfig()}
	applyDefaults(cfg, nil)
	return cfg
}
