package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aatumaykin/nexcron/internal/job"
	"github.com/aatumaykin/nexcron/internal/lock"
	"github.com/aatumaykin/nexcron/internal/logger"
	"github.com/aatumaykin/nexcron/internal/workers"
)

const (
	reasonAlreadyRunning   = "already running"
	reasonCycleDeadline    = "cycle deadline exceeded"
	reasonCycleInterrupted = "cycle interrupted"
	reasonCycleAborted     = "cycle aborted"
)

// errAbort is the cancellation cause when a storage error ends the cycle.
var errAbort = errors.New("cycle aborted by storage error")

// stopReason says why the cycle context is done.
func stopReason(ctx context.Context) string {
	switch {
	case errors.Is(context.Cause(ctx), errAbort):
		return reasonCycleAborted
	case errors.Is(ctx.Err(), context.Canceled):
		return reasonCycleInterrupted
	default:
		return reasonCycleDeadline
	}
}

// resultSlots collects per-job results by dispatch index.
type resultSlots struct {
	mu    sync.Mutex
	slots []*job.Result
}

func (r *resultSlots) set(i int, res *job.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[i] = res
}

func (r *resultSlots) all() []*job.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots
}

// dispatch runs the due jobs, in order, on a pool of MaxConcurrentJobs
// workers. A job's lock is only attempted when a worker takes it. The first
// storage error cancels the cycle and is returned. Jobs the pool never
// started are reported as skipped.
func (s *Scheduler) dispatch(ctx context.Context, cancel context.CancelCauseFunc, log *logger.Logger, due []job.Descriptor) ([]*job.Result, error) {
	if len(due) == 0 {
		return nil, nil
	}

	size := s.cfg.MaxConcurrentJobs
	if size > len(due) {
		size = len(due)
	}
	pool := workers.NewPool(ctx, size, len(due), log)
	pool.Start()

	slots := &resultSlots{slots: make([]*job.Result, len(due))}
	index := make(map[string]int, len(due))
	for i, d := range due {
		i, d := i, d
		index[d.Name] = i
		// The worker waits for runJob even past the cycle deadline: runJob
		// watches ctx itself and returns promptly, and its result must not
		// be lost.
		err := pool.Submit(workers.Task{
			ID:      d.Name,
			Context: context.WithoutCancel(ctx),
			Run: func(context.Context) error {
				res, err := s.runJob(ctx, log, d)
				if res != nil {
					slots.set(i, res)
				}
				return err
			},
		})
		if err != nil {
			break
		}
	}
	pool.Close()

	var infraErr error
	for r := range pool.Results() {
		switch {
		case r.Panicked:
			// runJob recovers job panics itself; this is a scheduler fault.
			slots.set(index[r.TaskID], job.Failure(r.TaskID, "scheduler fault", r.Error, s.now()))
		case r.Error != nil && lock.IsStorageError(r.Error) && infraErr == nil:
			infraErr = r.Error
			cancel(errAbort)
		}
	}

	pm := pool.Metrics()
	log.Debug("dispatch drained", event("cycle.drain"),
		logger.Field{Key: "submitted", Value: pm.TasksSubmitted},
		logger.Field{Key: "completed", Value: pm.TasksCompleted},
		logger.Field{Key: "failed", Value: pm.TasksFailed},
		logger.Field{Key: "busy_ms", Value: pm.TotalDuration.Milliseconds()})

	results := slots.all()
	if infraErr != nil {
		return nil, infraErr
	}

	now := s.now()
	for i, res := range results {
		if res == nil {
			reason := stopReason(ctx)
			results[i] = job.Skipped(due[i].Name, reason, now)
			log.Warn("job not started", event("job.skip"),
				logger.Field{Key: "job", Value: due[i].Name},
				logger.Field{Key: "reason", Value: reason})
		}
	}
	return results, nil
}

// runJob executes one due job under its lock. A nil result with an error
// means a storage failure.
func (s *Scheduler) runJob(ctx context.Context, log *logger.Logger, d job.Descriptor) (*job.Result, error) {
	jobLog := log.With(logger.Field{Key: "job", Value: d.Name})

	if ctx.Err() != nil {
		reason := stopReason(ctx)
		jobLog.Warn("job not started", event("job.skip"),
			logger.Field{Key: "reason", Value: reason})
		return job.Skipped(d.Name, reason, s.now()), nil
	}

	timeout := d.EffectiveTimeout(s.cfg.DefaultJobTimeoutDuration())
	held, err := s.locks.Acquire(d.LockName(), timeout)
	if errors.Is(err, lock.ErrAlreadyLocked) {
		jobLog.Info("job skipped", event("job.skip"),
			logger.Field{Key: "reason", Value: reasonAlreadyRunning})
		return job.Skipped(d.Name, reasonAlreadyRunning, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock for job %s: %w", d.Name, err)
	}

	res := job.NewResult(d.Name, s.now(), s.guard.Memory())
	res.SetMetadata("priority", d.Priority)
	res.SetMetadata("timeout_seconds", timeout.Seconds())
	jobLog.Info("job started", event("job.start"),
		logger.Field{Key: "timeout_ms", Value: timeout.Milliseconds()})

	jobCtx, cancelJob := context.WithTimeout(ctx, timeout)
	defer cancelJob()

	ex, finished := execute(jobCtx, d.Job)
	res.SetEndTime(s.now())
	res.SetEndMemory(s.guard.Memory())

	// A job that returned after an abort or interrupt is no longer running,
	// so its lock is released below.
	stopped := finished && ex.err != nil && ctx.Err() != nil &&
		stopReason(ctx) != reasonCycleDeadline

	if !stopped && (!finished || (ex.err != nil && jobCtx.Err() != nil)) {
		// The job may still be running; its lock is left to expire.
		res.TimedOut = true
		if ctx.Err() != nil {
			res.Message = stopReason(ctx)
			res.Exception = ctx.Err()
		} else {
			res.Message = fmt.Sprintf("timed out after %s", timeout)
			res.Exception = context.DeadlineExceeded
		}
		if finished {
			res.Output = ex.outcome.Output
			res.ExitCode = ex.outcome.ExitCode
		}
		jobLog.Warn("job timed out", event("job.timeout"),
			logger.Field{Key: "reason", Value: res.Message},
			logger.Field{Key: "lock_expires_at", Value: held.ExpiresAt})
		return res, nil
	}

	switch {
	case stopped:
		res.Apply(ex.outcome)
		res.Success = false
		res.TimedOut = true
		res.Message = stopReason(ctx)
		res.Exception = ex.err
		jobLog.Warn("job cancelled", event("job.timeout"),
			logger.Field{Key: "reason", Value: res.Message})
	case ex.panicked:
		res.Message = "job panicked"
		res.Exception = ex.err
		jobLog.Error("job panicked", ex.err, event("job.failure"),
			logger.Field{Key: "stack", Value: ex.stack})
	case ex.err != nil:
		res.Apply(ex.outcome)
		res.Success = false
		if res.Message == "" {
			res.Message = ex.err.Error()
		}
		res.Exception = ex.err
		jobLog.Error("job failed", ex.err, event("job.failure"),
			logger.Field{Key: "duration_ms", Value: res.Duration.Milliseconds()})
	default:
		res.Apply(ex.outcome)
		if res.Success {
			jobLog.Info("job succeeded", event("job.success"),
				logger.Field{Key: "duration_ms", Value: res.Duration.Milliseconds()})
		} else {
			jobLog.Warn("job reported failure", event("job.failure"),
				logger.Field{Key: "message", Value: res.Message},
				logger.Field{Key: "exit_code", Value: res.ExitCode})
		}
	}

	if err := s.locks.Release(held); err != nil {
		if !errors.Is(err, lock.ErrNotOwner) {
			return res, fmt.Errorf("release lock for job %s: %w", d.Name, err)
		}
		jobLog.Warn("job lock was reclaimed while running", event("job.lock_lost"))
	}
	return res, nil
}

type execution struct {
	outcome  job.Outcome
	err      error
	panicked bool
	stack    string
}

// cancelGrace is how long a job may take to return once its context is done
// before it is treated as still running.
const cancelGrace = 500 * time.Millisecond

// execute runs the job body and waits for it, or for ctx plus cancelGrace.
// Go cannot stop a goroutine, so a body that ignores ctx keeps running
// after execute returns false.
func execute(ctx context.Context, runner job.Runner) (execution, bool) {
	done := make(chan execution, 1)
	go func() {
		var ex execution
		defer func() {
			if r := recover(); r != nil {
				ex = execution{
					err:      fmt.Errorf("panic: %v", r),
					panicked: true,
					stack:    string(debug.Stack()),
				}
			}
			done <- ex
		}()
		ex.outcome, ex.err = runner.Execute(ctx)
	}()

	select {
	case ex := <-done:
		return ex, true
	case <-ctx.Done():
		grace := time.NewTimer(cancelGrace)
		defer grace.Stop()
		select {
		case ex := <-done:
			return ex, true
		case <-grace.C:
			return execution{}, false
		}
	}
}
