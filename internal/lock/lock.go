// Package lock implements named, time-bounded locks backed by files in a
// directory. It is the only coordination channel between overlapping
// scheduler processes.
//
// A lock file is published with link(2) from a fully written temp file, so
// it either exists with complete content or not at all. A lock whose expiry
// has passed, or whose content cannot be parsed, is stale and may be
// reclaimed by anyone. Every deletion happens under a per-name flock(2)
// guard and re-reads the file first, so a fresh lock is never removed by a
// party that observed an older, stale one.
package lock

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/nexcron/internal/logger"
)

const (
	// GlobalName is the lock serialising scheduler cycles.
	GlobalName = "global"

	jobPrefix = "job:"
)

// JobName returns the lock name for a job.
func JobName(job string) string {
	return jobPrefix + job
}

// Lock is ownership of a named resource until ExpiresAt.
type Lock struct {
	Name       string    `json:"name"`
	OwnerPID   int       `json:"owner_pid"`
	Token      string    `json:"token"`
	Hostname   string    `json:"hostname,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsStale reports whether the lock has expired at now.
func (l *Lock) IsStale(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// TTL returns the configured lifetime of the lock.
func (l *Lock) TTL() time.Duration {
	return l.ExpiresAt.Sub(l.AcquiredAt)
}

func (l *Lock) sameOwner(other *Lock) bool {
	return l.OwnerPID == other.OwnerPID &&
		l.Token == other.Token &&
		l.AcquiredAt.Equal(other.AcquiredAt)
}

// Manager acquires and releases locks in a single directory.
type Manager struct {
	dir      string
	now      func() time.Time
	pid      int
	hostname string
	logger   *logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source. Used for stale-lock tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPID overrides the owner pid recorded in lock files.
func WithPID(pid int) Option {
	return func(m *Manager) { m.pid = pid }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a manager for dir. The directory is created lazily.
func NewManager(dir string, opts ...Option) *Manager {
	hostname, _ := os.Hostname()
	m := &Manager{
		dir:      dir,
		now:      time.Now,
		pid:      os.Getpid(),
		hostname: hostname,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the lock directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Acquire takes the lock called name for timeout. It returns
// ErrAlreadyLocked if a live lock exists and a *StorageError on I/O failure.
func (m *Manager) Acquire(name string, timeout time.Duration) (*Lock, error) {
	if err := m.ensureDir(); err != nil {
		return nil, err
	}

	now := m.now().UTC().Round(0)
	l := &Lock{
		Name:       name,
		OwnerPID:   m.pid,
		Token:      uuid.NewString(),
		Hostname:   m.hostname,
		AcquiredAt: now,
		ExpiresAt:  now.Add(timeout),
	}

	data, err := json.Marshal(l)
	if err != nil {
		return nil, storageErr("encode", name, err)
	}

	tmp, err := m.writeTemp(name, data)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	path := m.path(name)
	for attempt := 0; attempt < 2; attempt++ {
		err := os.Link(tmp, path)
		if err == nil {
			m.logger.Debug("lock acquired",
				logger.Field{Key: "lock", Value: name},
				logger.Field{Key: "expires_at", Value: l.ExpiresAt})
			return l, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, storageErr("link", path, err)
		}
		if attempt > 0 {
			break
		}

		reclaimed, err := m.reclaimIfStale(name)
		if err != nil {
			return nil, err
		}
		if !reclaimed {
			break
		}
	}

	return nil, ErrAlreadyLocked
}

// Release removes the lock file if it still belongs to l.
func (m *Manager) Release(l *Lock) error {
	if l == nil {
		return nil
	}

	return m.withGuard(l.Name, func() error {
		current, err := m.read(l.Name)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errCorrupt) {
			return ErrNotOwner
		}
		if err != nil {
			return err
		}
		if !current.sameOwner(l) {
			return ErrNotOwner
		}
		if err := removeFile(m.path(l.Name)); err != nil {
			return err
		}
		m.logger.Debug("lock released", logger.Field{Key: "lock", Value: l.Name})
		return nil
	})
}

// IsLocked reports whether a live lock called name exists.
func (m *Manager) IsLocked(name string) (bool, error) {
	current, err := m.read(name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errCorrupt) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !current.IsStale(m.now()), nil
}

// Inspect returns the lock record for name, or nil if there is none or it
// cannot be parsed.
func (m *Manager) Inspect(name string) (*Lock, error) {
	current, err := m.read(name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errCorrupt) {
		return nil, nil
	}
	return current, err
}

// reclaimIfStale removes the lock file for name when it is stale or corrupt.
// It returns true when the caller should retry publishing.
func (m *Manager) reclaimIfStale(name string) (bool, error) {
	var reclaimed bool
	err := m.withGuard(name, func() error {
		current, err := m.read(name)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			reclaimed = true
			return nil
		case errors.Is(err, errCorrupt):
			m.logger.Warn("reclaiming corrupt lock file", logger.Field{Key: "lock", Value: name})
		case err != nil:
			return err
		case !current.IsStale(m.now()):
			return nil
		default:
			m.logger.Info("reclaiming stale lock",
				logger.Field{Key: "lock", Value: name},
				logger.Field{Key: "owner_pid", Value: current.OwnerPID},
				logger.Field{Key: "expired_at", Value: current.ExpiresAt})
		}
		if err := removeFile(m.path(name)); err != nil {
			return err
		}
		reclaimed = true
		return nil
	})
	return reclaimed, err
}
