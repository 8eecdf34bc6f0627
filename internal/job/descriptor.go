// Package job defines the units the scheduler runs: descriptors kept in a
// Registry, the Runner each one wraps and the Result of one execution.
package job

import (
	"context"
	"time"

	"github.com/aatumaykin/nexcron/internal/cron"
	"github.com/aatumaykin/nexcron/internal/lock"
)

// Outcome is what a Runner reports when it returns normally.
type Outcome struct {
	Success  bool
	Message  string
	Output   string
	ExitCode int
	Metadata map[string]any
}

// Runner is the executable body of a job. Execute must return promptly once
// ctx is done; the scheduler stops waiting for it either way.
type Runner interface {
	Execute(ctx context.Context) (Outcome, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (Outcome, error)

// Execute calls f(ctx).
func (f RunnerFunc) Execute(ctx context.Context) (Outcome, error) {
	return f(ctx)
}

// Descriptor identifies a runnable job and its scheduling metadata.
type Descriptor struct {
	Name     string
	Schedule string        // 5-field cron expression
	Priority int           // lower runs first
	Timeout  time.Duration // 0 uses the scheduler default
	Enabled  bool
	Job      Runner

	expr *cron.Expression
}

// LockName returns the per-job lock name.
func (d Descriptor) LockName() string {
	return lock.JobName(d.Name)
}

// EffectiveTimeout returns the job timeout, or def when none is configured.
func (d Descriptor) EffectiveTimeout(def time.Duration) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return def
}

// Due reports whether the job is enabled and its schedule matches at.
func (d Descriptor) Due(at time.Time) bool {
	if !d.Enabled || d.expr == nil {
		return false
	}
	return d.expr.Matches(at)
}

// Next returns the next activation strictly after t, or the zero time when
// the descriptor was not registered.
func (d Descriptor) Next(t time.Time) time.Time {
	if d.expr == nil {
		return time.Time{}
	}
	return d.expr.Next(t)
}
