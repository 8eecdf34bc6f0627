package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/nexcron/internal/logger"
)

// worker takes tasks until the queue is closed or the pool is cancelled.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		// Prefer stopping over starting another task once cancelled.
		if p.ctx.Err() != nil {
			return
		}
		select {
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.processTask(id, task)
		case <-p.ctx.Done():
			p.logger.Debug("worker stopping", logger.Field{Key: "worker_id", Value: id})
			return
		}
	}
}

// processTask runs one task and publishes its result.
func (p *WorkerPool) processTask(workerID int, task Task) {
	startTime := time.Now()

	execCtx := p.ctx
	if task.Context != nil {
		execCtx = task.Context
	}

	result := p.executeTask(execCtx, task)
	result.Duration = time.Since(startTime)

	switch {
	case result.Panicked:
		p.incrementPanicked()
	case result.Error != nil:
		p.incrementFailed()
	default:
		p.incrementCompleted()
	}
	p.recordDuration(result.Duration)

	select {
	case p.resultCh <- result:
	default:
		select {
		case p.resultCh <- result:
		case <-p.ctx.Done():
			p.logger.Warn("result dropped, pool shutting down",
				logger.Field{Key: "task_id", Value: task.ID})
		}
	}

	p.logger.Debug("task processed",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "duration_ms", Value: result.Duration.Milliseconds()})
}

// executeTask runs task.Run with panic recovery. The worker stops waiting
// when ctx is done even if the task body ignores cancellation.
func (p *WorkerPool) executeTask(ctx context.Context, task Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{TaskID: task.ID, Error: err}
	}
	if task.Run == nil {
		return Result{TaskID: task.ID, Started: true, Error: fmt.Errorf("task %s has no body", task.ID)}
	}

	done := make(chan struct{})
	var err error
	var panicked bool

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				err = fmt.Errorf("panic: %v", r)
				p.logger.Error("task panic recovered", err, logger.Field{Key: "task_id", Value: task.ID})
			}
		}()
		err = task.Run(ctx)
	}()

	select {
	case <-done:
		return Result{TaskID: task.ID, Started: true, Error: err, Panicked: panicked}
	case <-ctx.Done():
		return Result{TaskID: task.ID, Started: true, Error: ctx.Err()}
	}
}
