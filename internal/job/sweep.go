package job

import (
	"context"
	"fmt"
)

// StaleCleaner removes stale locks and reports how many it removed.
// *lock.Manager satisfies it.
type StaleCleaner interface {
	CleanupStale() (int, error)
}

// LockSweepJob runs the stale-lock sweep as a scheduled job, for setups that
// disable the sweep at the end of each cycle.
type LockSweepJob struct {
	Locks StaleCleaner
}

// Execute sweeps the lock directory once.
func (j *LockSweepJob) Execute(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	removed, err := j.Locks.CleanupStale()
	if err != nil {
		return Outcome{}, fmt.Errorf("sweep stale locks: %w", err)
	}
	return Outcome{
		Success:  true,
		Message:  fmt.Sprintf("removed %d stale lock(s)", removed),
		Metadata: map[string]any{"removed": removed},
	}, nil
}
