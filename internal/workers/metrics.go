package workers

import (
	"time"
)

// Metrics returns the current pool metrics.
func (p *WorkerPool) Metrics() PoolMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

func (p *WorkerPool) incrementSubmitted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksSubmitted++
}

func (p *WorkerPool) incrementCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksCompleted++
}

// incrementFailed counts tasks that returned an error or were abandoned.
func (p *WorkerPool) incrementFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksFailed++
}

// incrementPanicked counts panics; a panicked task is also a failed one.
func (p *WorkerPool) incrementPanicked() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TasksPanicked++
	p.metrics.TasksFailed++
}

func (p *WorkerPool) recordDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.TotalDuration += d
}
