package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/nexcron/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.Nop()
}

func collect(t *testing.T, pool *WorkerPool) map[string]Result {
	t.Helper()
	results := make(map[string]Result)
	timeout := time.After(10 * time.Second)
	for {
		select {
		case r, ok := <-pool.Results():
			if !ok {
				return results
			}
			results[r.TaskID] = r
		case <-timeout:
			t.Fatalf("timeout waiting for results, got %d", len(results))
		}
	}
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		name        string
		workers     int
		wantWorkers int
	}{
		{"valid pool", 3, 3},
		{"single worker", 1, 1},
		{"zero uses default", 0, DefaultPoolSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(context.Background(), tt.workers, 10, testLogger())
			assert.Equal(t, tt.wantWorkers, pool.WorkerCount())
			assert.NotNil(t, pool.Results())
			assert.Equal(t, 0, pool.QueueSize())
		})
	}
}

func TestPool_RunsAllTasks(t *testing.T) {
	pool := NewPool(context.Background(), 3, 20, testLogger())
	pool.Start()

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(Task{
			ID: fmt.Sprintf("task-%d", i),
			Run: func(context.Context) error {
				ran.Add(1)
				return nil
			},
		}))
	}
	pool.Close()

	results := collect(t, pool)
	assert.Len(t, results, 20)
	assert.Equal(t, int32(20), ran.Load())
	for _, r := range results {
		assert.NoError(t, r.Error)
		assert.True(t, r.Started)
	}

	m := pool.Metrics()
	assert.Equal(t, uint64(20), m.TasksSubmitted)
	assert.Equal(t, uint64(20), m.TasksCompleted)
	assert.Equal(t, uint64(0), m.TasksFailed)
}

func TestPool_SingleWorkerPreservesOrder(t *testing.T) {
	pool := NewPool(context.Background(), 1, 10, testLogger())
	pool.Start()

	var mu sync.Mutex
	var order []string
	for _, id := range []string{"a", "b", "c", "d"} {
		id := id
		require.NoError(t, pool.Submit(Task{ID: id, Run: func(context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}}))
	}
	pool.Close()
	collect(t, pool)

	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestPool_ConcurrencyBounded(t *testing.T) {
	const workers = 2
	pool := NewPool(context.Background(), workers, 10, testLogger())
	pool.Start()

	var running, peak atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(Task{ID: fmt.Sprint(i), Run: func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		}}))
	}
	pool.Close()
	collect(t, pool)

	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Equal(t, int32(workers), peak.Load())
}

func TestPool_ErrorAndPanic(t *testing.T) {
	pool := NewPool(context.Background(), 2, 10, testLogger())
	pool.Start()

	require.NoError(t, pool.Submit(Task{ID: "err", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, pool.Submit(Task{ID: "panic", Run: func(context.Context) error {
		panic("kaboom")
	}}))
	require.NoError(t, pool.Submit(Task{ID: "nil-body"}))
	pool.Close()

	results := collect(t, pool)
	assert.EqualError(t, results["err"].Error, "boom")
	assert.False(t, results["err"].Panicked)

	assert.True(t, results["panic"].Panicked)
	assert.ErrorContains(t, results["panic"].Error, "kaboom")

	assert.Error(t, results["nil-body"].Error)

	m := pool.Metrics()
	assert.Equal(t, uint64(3), m.TasksFailed)
	assert.Equal(t, uint64(1), m.TasksPanicked)
}

func TestPool_CancelledContextSkipsPendingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1, 10, testLogger())
	pool.Start()

	release := make(chan struct{})
	require.NoError(t, pool.Submit(Task{ID: "blocker", Run: func(ctx context.Context) error {
		<-release
		return nil
	}}))
	require.NoError(t, pool.Submit(Task{ID: "pending", Run: func(context.Context) error {
		t.Error("pending task must not start")
		return nil
	}}))
	pool.Close()

	time.Sleep(20 * time.Millisecond)
	cancel()
	pool.Wait()
	close(release)

	results := collect(t, pool)
	_, started := results["pending"]
	assert.False(t, started)
	assert.ErrorIs(t, results["blocker"].Error, context.Canceled)
}

func TestPool_AbandonsTaskIgnoringContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pool := NewPool(ctx, 1, 1, testLogger())
	pool.Start()

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(Task{ID: "stubborn", Run: func(context.Context) error {
		<-release
		return nil
	}}))
	pool.Close()

	start := time.Now()
	pool.Wait()
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPool_TaskContextOverridesPool(t *testing.T) {
	pool := NewPool(context.Background(), 1, 1, testLogger())
	pool.Start()

	taskCtx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pool.Submit(Task{ID: "cancelled", Context: taskCtx, Run: func(context.Context) error {
		return nil
	}}))
	pool.Close()

	results := collect(t, pool)
	assert.ErrorIs(t, results["cancelled"].Error, context.Canceled)
	assert.False(t, results["cancelled"].Started)
}

func TestPool_StopUnblocksSubmit(t *testing.T) {
	pool := NewPool(context.Background(), 1, 0, testLogger())
	// Not started: an unbuffered queue blocks Submit until Stop.
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Submit(Task{ID: "x", Run: func(context.Context) error { return nil }})
	}()

	time.Sleep(20 * time.Millisecond)
	pool.cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after cancel")
	}
	pool.Stop()
}
