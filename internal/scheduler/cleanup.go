package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aatumaykin/nexcron/internal/logger"
)

// sweepMarker records the time of the last sweep in the lock directory. Its
// name does not end in .lock, so sweeps never touch it.
const sweepMarker = ".last-sweep"

// sweep removes stale locks if lock_cleanup_interval has passed since the
// previous sweep by any cycle.
func (s *Scheduler) sweep(log *logger.Logger, report *CycleReport) error {
	marker := filepath.Join(s.locks.Dir(), sweepMarker)
	now := s.now()

	interval := s.cfg.LockCleanupIntervalDuration()
	if interval > 0 {
		if info, err := os.Stat(marker); err == nil && now.Sub(info.ModTime()) < interval {
			log.Debug("stale lock sweep not due", event("cleanup.skip"),
				logger.Field{Key: "last_sweep", Value: info.ModTime()})
			return nil
		}
	}

	removed, err := s.locks.CleanupStale()
	if err != nil {
		return fmt.Errorf("sweep stale locks: %w", err)
	}
	report.Cleaned = removed
	report.Swept = true

	if err := touch(marker, now); err != nil {
		log.Warn("failed to update sweep marker", event("cleanup.marker"),
			logger.Field{Key: "error", Value: err.Error()})
	}

	log.Info("stale lock sweep done", event("cleanup.done"),
		logger.Field{Key: "removed", Value: removed})
	return nil
}

// touch creates path if needed and sets its mtime to at.
func touch(path string, at time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chtimes(path, at, at)
}
