package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML configuration file. Absent keys take defaults; relative
// paths in [jobs] are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	for _, key := range meta.Undecoded() {
		cfg.unknownKeys = append(cfg.unknownKeys, key.String())
	}

	applyDefaults(&cfg, &meta)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	if cfg.Jobs.File != "" && !filepath.IsAbs(cfg.Jobs.File) {
		cfg.Jobs.File = filepath.Join(filepath.Dir(path), cfg.Jobs.File)
	}

	return &cfg, nil
}

// UnknownKeys returns keys present in the file that no option uses.
func (c *Config) UnknownKeys() []string {
	return c.unknownKeys
}

// applyDefaults fills scheduler options whose key is absent from the file.
// meta tells an absent key apart from an explicit zero or false, so a zero
// written in the file reaches Validate. A nil meta means no file was read.
func applyDefaults(c *Config, meta *toml.MetaData) {
	defined := func(key string) bool {
		return meta != nil && meta.IsDefined("scheduler", key)
	}

	s := &c.Scheduler
	d := DefaultSchedulerConfig()
	if !defined("global_timeout") {
		s.GlobalTimeout = d.GlobalTimeout
	}
	if !defined("max_concurrent_jobs") {
		s.MaxConcurrentJobs = d.MaxConcurrentJobs
	}
	if !defined("cleanup_stale_locks") {
		s.CleanupStaleLocks = d.CleanupStaleLocks
	}
	if !defined("skip_on_high_load") {
		s.SkipOnHighLoad = d.SkipOnHighLoad
	}
	if !defined("max_load_average") {
		s.MaxLoadAverage = d.MaxLoadAverage
	}
	if !defined("max_memory_usage") {
		s.MaxMemoryUsage = d.MaxMemoryUsage
	}
	if !defined("default_job_timeout") {
		s.DefaultJobTimeout = d.DefaultJobTimeout
	}
	if s.LockDirectory == "" {
		s.LockDirectory = d.LockDirectory
	}
	if !defined("lock_cleanup_interval") {
		s.LockCleanupInterval = d.LockCleanupInterval
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Metrics.Textfile == "" {
		c.Metrics.Textfile = DefaultMetricsTextfile
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "nexcron"
	}
}

// expandEnvVars expands ${VAR} references and ~/ in path-like values.
func expandEnvVars(c *Config) error {
	for _, p := range []*string{
		&c.Scheduler.LockDirectory,
		&c.Logging.Output,
		&c.Metrics.Textfile,
		&c.Jobs.File,
	} {
		*p = expandHome(expandEnv(*p))
	}
	if c.Scheduler.LockDirectory == "" {
		return fmt.Errorf("scheduler.lock_directory expands to an empty path")
	}
	return nil
}

// expandEnv expands a value of the form ${VAR} or ${VAR:default}.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	rest := s[end+1:]
	content := s[2:end]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val + rest
		}
		return defaultVal + rest
	}

	return os.Getenv(content) + rest
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
