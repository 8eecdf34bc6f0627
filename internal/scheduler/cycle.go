package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aatumaykin/nexcron/internal/lock"
	"github.com/aatumaykin/nexcron/internal/logger"
)

// RunCycle runs one scheduling cycle.
//
// A cycle that finds another one running, or is refused by the resource
// gate, returns a report with the terminal state and a nil error. A lock
// storage failure aborts the cycle: in-flight jobs are cancelled, the
// global lock is released and the error wraps ErrCycleAborted. No report is
// returned in that case.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		ID:        uuid.NewString(),
		State:     StateStart,
		StartedAt: s.now(),
	}
	log := s.logger.With(logger.Field{Key: "cycle_id", Value: report.ID})
	log.Info("cycle started", event("cycle.start"),
		logger.Field{Key: "evaluated_at", Value: report.StartedAt})

	s.transition(log, report, StateGlobalLockPending)
	global, err := s.locks.Acquire(lock.GlobalName, s.cfg.GlobalTimeoutDuration())
	if errors.Is(err, lock.ErrAlreadyLocked) {
		s.transition(log, report, StateGlobalLockDenied)
		report.SkipReason = "another cycle is running"
		log.Info("global lock held by another cycle", event("cycle.denied"))
		s.finish(report)
		return report, nil
	}
	if err != nil {
		return nil, s.abort(log, report, nil, fmt.Errorf("acquire global lock: %w", err))
	}
	s.transition(log, report, StateGlobalLockHeld)

	s.transition(log, report, StateResourceCheck)
	report.Admission = s.guard.ShouldAdmit(s.limits())
	if !report.Admission.Admit {
		s.transition(log, report, StateAdmissionDenied)
		report.SkipReason = report.Admission.Reason
		log.Info("cycle skipped by resource gate", event("cycle.skip"),
			logger.Field{Key: "reason", Value: report.Admission.Reason},
			logger.Field{Key: "load1", Value: report.Admission.Load1},
			logger.Field{Key: "memory_mb", Value: report.Admission.MemoryMB})
		if err := s.releaseGlobal(log, global); err != nil {
			return nil, s.abort(log, report, nil, err)
		}
		s.finish(report)
		return report, nil
	}
	s.transition(log, report, StateAdmitted)

	budgetCtx, cancelBudget := context.WithTimeout(ctx, s.cfg.GlobalTimeoutDuration())
	defer cancelBudget()
	cycleCtx, cancel := context.WithCancelCause(budgetCtx)
	defer cancel(nil)

	s.transition(log, report, StateDispatch)
	due := s.registry.DueJobs(report.StartedAt)
	log.Debug("due jobs computed", event("cycle.dispatch"),
		logger.Field{Key: "due", Value: len(due)})

	s.transition(log, report, StatePerJob)
	results, err := s.dispatch(cycleCtx, cancel, log, due)
	s.transition(log, report, StateDrain)
	if err != nil {
		return nil, s.abort(log, report, global, err)
	}
	report.Results = results

	s.transition(log, report, StateCleanup)
	if s.cfg.CleanupStaleLocks {
		if err := s.sweep(log, report); err != nil {
			return nil, s.abort(log, report, global, err)
		}
	}
	if err := s.releaseGlobal(log, global); err != nil {
		return nil, s.abort(log, report, nil, err)
	}

	s.transition(log, report, StateDone)
	s.finish(report)
	return report, nil
}

func (s *Scheduler) transition(log *logger.Logger, report *CycleReport, state State) {
	report.State = state
	log.Debug("cycle state", event("cycle.state"),
		logger.Field{Key: "state", Value: string(state)})
}

// releaseGlobal releases the global lock. Losing it to a stale reclaim
// means the cycle overran global_timeout; that is logged, not fatal.
func (s *Scheduler) releaseGlobal(log *logger.Logger, global *lock.Lock) error {
	err := s.locks.Release(global)
	if errors.Is(err, lock.ErrNotOwner) {
		log.Warn("global lock was reclaimed before release", event("cycle.lock_lost"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("release global lock: %w", err)
	}
	return nil
}

// abort ends the cycle after an infrastructure failure. global is released
// when non-nil.
func (s *Scheduler) abort(log *logger.Logger, report *CycleReport, global *lock.Lock, cause error) error {
	s.transition(log, report, StateAborted)
	if global != nil {
		if err := s.locks.Release(global); err != nil && !errors.Is(err, lock.ErrNotOwner) {
			cause = errors.Join(cause, fmt.Errorf("release global lock: %w", err))
		}
	}
	log.Error("cycle aborted", cause, event("cycle.abort"))
	s.finish(report)
	return fmt.Errorf("%w: %w", ErrCycleAborted, cause)
}

// finish stamps the report, records metrics and logs the summary.
func (s *Scheduler) finish(report *CycleReport) {
	report.FinishedAt = s.now()

	s.metrics.RecordCycle(report.Outcome(), report.FinishedAt, report.Duration())
	for _, res := range report.Results {
		s.metrics.RecordJob(res.JobName, string(res.Status()), res.Duration)
	}
	s.metrics.AddStaleLocksRemoved(report.Cleaned)

	if report.State != StateDone {
		return
	}
	sum := report.Summary()
	s.logger.Info("cycle finished", event("cycle.done"),
		logger.Field{Key: "cycle_id", Value: report.ID},
		logger.Field{Key: "jobs", Value: len(report.Results)},
		logger.Field{Key: "succeeded", Value: sum.Succeeded},
		logger.Field{Key: "failed", Value: sum.Failed},
		logger.Field{Key: "skipped", Value: sum.Skipped},
		logger.Field{Key: "timed_out", Value: sum.TimedOut},
		logger.Field{Key: "cleaned", Value: report.Cleaned},
		logger.Field{Key: "duration_ms", Value: report.Duration().Milliseconds()})
}
