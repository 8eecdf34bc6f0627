package workers

import (
	"context"
	"sync"

	"github.com/aatumaykin/nexcron/internal/logger"
)

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	taskQueue chan Task
	resultCh  chan Result
	workers   int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *logger.Logger

	mu      sync.RWMutex
	metrics PoolMetrics

	closeOnce sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops workers from
// taking further tasks and abandons tasks still running.
func NewPool(ctx context.Context, workers, bufferSize int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if bufferSize < 0 {
		bufferSize = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		taskQueue: make(chan Task, bufferSize),
		resultCh:  make(chan Result, bufferSize),
		workers:   workers,
		ctx:       poolCtx,
		cancel:    cancel,
		logger:    log,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	p.logger.Debug("starting worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "buffer_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues a task. It blocks while the queue is full and returns the
// pool context error if the pool is stopped first. Submit must not be called
// after Close.
func (p *WorkerPool) Submit(task Task) error {
	p.incrementSubmitted()

	p.logger.Debug("task submitted", logger.Field{Key: "task_id", Value: task.ID})

	select {
	case p.taskQueue <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Close marks the end of submissions. Workers exit once the queue is empty
// and Results is closed after the last of them.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.taskQueue)
		go func() {
			p.wg.Wait()
			close(p.resultCh)
		}()
	})
}

// Results returns the result channel. It is closed after Close once every
// worker has exited.
func (p *WorkerPool) Results() <-chan Result {
	return p.resultCh
}

// Wait blocks until every worker has exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Stop cancels the pool, closes the queue and waits for the workers.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.Close()
	p.wg.Wait()

	metrics := p.Metrics()
	p.logger.Debug("worker pool stopped",
		logger.Field{Key: "tasks_submitted", Value: metrics.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: metrics.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: metrics.TasksFailed})
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// QueueSize returns the current number of tasks waiting in the queue.
func (p *WorkerPool) QueueSize() int {
	return len(p.taskQueue)
}
