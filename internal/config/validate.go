package config

import (
	"fmt"
	"strings"

	"github.com/aatumaykin/nexcron/internal/cron"
)

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	errors = append(errors, c.Scheduler.Validate()...)

	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		errors = append(errors, fmt.Errorf("metrics.textfile is required when metrics are enabled"))
	}
	if c.Metrics.Enabled && !strings.HasSuffix(c.Metrics.Textfile, ".prom") {
		errors = append(errors, fmt.Errorf("metrics.textfile must end in .prom for the textfile collector: %s", c.Metrics.Textfile))
	}

	if c.Jobs.SweepSchedule != "" {
		if err := cron.Validate(c.Jobs.SweepSchedule); err != nil {
			errors = append(errors, fmt.Errorf("jobs.sweep_schedule: %w", err))
		}
	}

	return errors
}

// Validate checks the scheduler options.
func (s SchedulerConfig) Validate() []error {
	var errors []error

	if s.GlobalTimeout <= 0 {
		errors = append(errors, fmt.Errorf("scheduler.global_timeout must be positive, got %d", s.GlobalTimeout))
	}
	if s.MaxConcurrentJobs < 1 {
		errors = append(errors, fmt.Errorf("scheduler.max_concurrent_jobs must be at least 1, got %d", s.MaxConcurrentJobs))
	}
	if s.MaxLoadAverage <= 0 {
		errors = append(errors, fmt.Errorf("scheduler.max_load_average must be positive, got %g", s.MaxLoadAverage))
	}
	if s.MaxMemoryUsage < 0 {
		errors = append(errors, fmt.Errorf("scheduler.max_memory_usage cannot be negative, got %d", s.MaxMemoryUsage))
	}
	if s.DefaultJobTimeout <= 0 {
		errors = append(errors, fmt.Errorf("scheduler.default_job_timeout must be positive, got %d", s.DefaultJobTimeout))
	}
	if s.LockCleanupInterval < 0 {
		errors = append(errors, fmt.Errorf("scheduler.lock_cleanup_interval cannot be negative, got %d", s.LockCleanupInterval))
	}
	if err := validatePath(s.LockDirectory, "scheduler.lock_directory"); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.HasPrefix(path, "~") {
		return nil
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
		}
	}

	return nil
}
