package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/aatumaykin/nexcron/internal/config"
	"github.com/aatumaykin/nexcron/internal/constants"
	"github.com/aatumaykin/nexcron/internal/job"
	"github.com/aatumaykin/nexcron/internal/jobfile"
	"github.com/aatumaykin/nexcron/internal/logger"
	"github.com/aatumaykin/nexcron/internal/resource"
)

// sweepJobName is the name of the built-in lock sweep job.
const sweepJobName = "lock-sweep"

// loadConfig reads and validates the configuration. Without --config a
// missing ./config.toml means built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		path = constants.DefaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
}

// newGuard returns a procfs-backed guard. Hosts without /proc get a guard
// that always admits.
func newGuard(log *logger.Logger) *resource.Guard {
	sampler, err := resource.NewProcSampler()
	if err != nil {
		log.Warn("procfs unavailable, resource gate disabled",
			logger.Field{Key: "error", Value: err.Error()})
		return resource.NewGuard(resource.StaticSampler{Err: err}, log)
	}
	return resource.NewGuard(sampler, log)
}

// buildRegistry registers the jobs from the job file and the built-in sweep
// job. override replaces the file named in the configuration. The default
// ./jobs.yaml may be absent.
func buildRegistry(cfg *config.Config, override string, locks job.StaleCleaner) (*job.Registry, error) {
	reg := job.NewRegistry()

	path := override
	if path == "" {
		path = cfg.Jobs.File
	}
	optional := path == ""
	if optional {
		path = constants.DefaultJobsPath
	}

	if _, err := os.Stat(path); err == nil || !optional {
		defs, err := jobfile.Load(path)
		if err != nil {
			return nil, err
		}
		if err := jobfile.Register(reg, defs); err != nil {
			return nil, fmt.Errorf("register jobs from %s: %w", path, err)
		}
	}

	if cfg.Jobs.SweepSchedule != "" {
		err := reg.Register(job.Descriptor{
			Name:     sweepJobName,
			Schedule: cfg.Jobs.SweepSchedule,
			Priority: 1000,
			Enabled:  true,
			Job:      &job.LockSweepJob{Locks: locks},
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", sweepJobName, err)
		}
	}
	return reg, nil
}
