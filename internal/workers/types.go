// Package workers provides a bounded worker pool. Tasks are taken from a
// FIFO queue by the next free worker, so submission order is start order.
package workers

import (
	"context"
	"time"
)

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context) error

// Task represents a unit of work to be executed by a worker.
type Task struct {
	ID      string          // Unique task identifier
	Context context.Context // Optional task context; the pool context is used when nil
	Run     TaskFunc
}

// Result represents the outcome of a task execution.
type Result struct {
	TaskID   string
	Error    error
	Panicked bool
	Started  bool // false when the context was done before the task began
	Duration time.Duration
}

// PoolMetrics tracks execution metrics for the worker pool.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	TasksPanicked  uint64
	TotalDuration  time.Duration
}

const (
	DefaultPoolSize  = 5
	DefaultQueueSize = 100
)
