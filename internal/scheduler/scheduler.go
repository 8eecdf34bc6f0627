// Package scheduler runs one scheduling cycle: it takes the global lock,
// checks resources, dispatches the due jobs under per-job locks with a
// concurrency ceiling and time budgets, sweeps stale locks and reports the
// results. Nothing is shared between cycles except the lock directory.
package scheduler

import (
	"errors"
	"time"

	"github.com/aatumaykin/nexcron/internal/config"
	"github.com/aatumaykin/nexcron/internal/job"
	"github.com/aatumaykin/nexcron/internal/lock"
	"github.com/aatumaykin/nexcron/internal/logger"
	"github.com/aatumaykin/nexcron/internal/metrics"
	"github.com/aatumaykin/nexcron/internal/resource"
)

// ErrCycleAborted is returned when an infrastructure failure ends a cycle.
// The cause is wrapped alongside it.
var ErrCycleAborted = errors.New("scheduling cycle aborted")

// LockManager is the lock directory as seen by the scheduler.
// *lock.Manager implements it.
type LockManager interface {
	Acquire(name string, timeout time.Duration) (*lock.Lock, error)
	Release(l *lock.Lock) error
	CleanupStale() (int, error)
	Dir() string
}

// Admitter is the resource gate. *resource.Guard implements it.
type Admitter interface {
	ShouldAdmit(limits resource.Limits) resource.Decision
	Memory() uint64
}

// Scheduler runs cycles over a registry. It holds no state between cycles.
type Scheduler struct {
	cfg      config.SchedulerConfig
	registry *job.Registry
	locks    LockManager
	guard    Admitter
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the event sink.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records cycle and job metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock overrides the time source used for due-job evaluation, result
// timestamps and the sweep interval. Budgets always use real time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New returns a scheduler. Options that would disable exclusion (a
// non-positive concurrency or timeout) are replaced by the defaults.
func New(cfg config.SchedulerConfig, registry *job.Registry, locks LockManager, guard Admitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		registry: registry,
		locks:    locks,
		guard:    guard,
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxConcurrentJobs < 1 {
		s.cfg.MaxConcurrentJobs = 1
	}
	if s.cfg.GlobalTimeout <= 0 {
		s.cfg.GlobalTimeout = config.DefaultGlobalTimeout
	}
	if s.cfg.DefaultJobTimeout <= 0 {
		s.cfg.DefaultJobTimeout = config.DefaultJobTimeout
	}
	return s
}

func (s *Scheduler) limits() resource.Limits {
	return resource.Limits{
		SkipOnHighLoad: s.cfg.SkipOnHighLoad,
		MaxLoadAverage: s.cfg.MaxLoadAverage,
		MaxMemoryMB:    float64(s.cfg.MaxMemoryUsage),
	}
}

func event(name string) logger.Field {
	return logger.Field{Key: "event", Value: name}
}
