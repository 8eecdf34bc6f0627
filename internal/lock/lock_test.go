package lock

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source shared between managers.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, dir string, clock *fakeClock, pid int) *Manager {
	t.Helper()
	return NewManager(dir, WithClock(clock.Now), WithPID(pid))
}

func TestAcquire_CreatesLockFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	l, err := m.Acquire(GlobalName, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, GlobalName, l.Name)
	assert.Equal(t, 100, l.OwnerPID)
	assert.NotEmpty(t, l.Token)
	assert.Equal(t, 30*time.Second, l.TTL())

	data, err := os.ReadFile(filepath.Join(dir, "global.lock"))
	require.NoError(t, err)

	var onDisk Lock
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, l.Token, onDisk.Token)
	assert.True(t, l.ExpiresAt.Equal(onDisk.ExpiresAt))
	assert.True(t, l.AcquiredAt.Equal(clock.Now()))

	// No temp files are left behind.
	matches, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAcquire_LiveLockDenied(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	first := newTestManager(t, dir, clock, 100)
	second := newTestManager(t, dir, clock, 200)

	_, err := first.Acquire(JobName("backup"), time.Minute)
	require.NoError(t, err)

	_, err = second.Acquire(JobName("backup"), time.Minute)
	assert.ErrorIs(t, err, ErrAlreadyLocked)
	assert.False(t, IsStorageError(err))

	// Exactly at expiry the lock is still live.
	clock.Advance(time.Minute)
	_, err = second.Acquire(JobName("backup"), time.Minute)
	assert.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestAcquire_ReleaseThenReacquire(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	l, err := m.Acquire("job:report", time.Minute)
	require.NoError(t, err)
	require.NoError(t, m.Release(l))

	locked, err := m.IsLocked("job:report")
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = m.Acquire("job:report", time.Minute)
	assert.NoError(t, err)
}

func TestAcquire_StaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	crashed := newTestManager(t, dir, clock, 100)
	next := newTestManager(t, dir, clock, 200)

	old, err := crashed.Acquire(JobName("sync"), time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	// The stale file is still on disk before any cleanup.
	_, err = os.Stat(next.path(JobName("sync")))
	require.NoError(t, err)

	fresh, err := next.Acquire(JobName("sync"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 200, fresh.OwnerPID)

	// The crashed owner cannot release what is no longer theirs.
	assert.ErrorIs(t, crashed.Release(old), ErrNotOwner)

	locked, err := next.IsLocked(JobName("sync"))
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestAcquire_CorruptLockIsStale(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	require.NoError(t, os.WriteFile(m.path(GlobalName), []byte("{\"name\":\"glo"), 0644))

	locked, err := m.IsLocked(GlobalName)
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = m.Acquire(GlobalName, time.Minute)
	assert.NoError(t, err)
}

func TestAcquire_StorageError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	m := NewManager(filepath.Join(blocker, "locks"))
	_, err := m.Acquire(GlobalName, time.Minute)
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
	assert.False(t, errors.Is(err, ErrAlreadyLocked))

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "mkdir", se.Op)
}

func TestAcquire_ConcurrentSingleWinner(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()

	const contenders = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			m := newTestManager(t, dir, clock, pid)
			<-start
			_, err := m.Acquire(JobName("x"), time.Minute)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyLocked)
		}(1000 + i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestAcquire_ConcurrentStaleReclaimSingleWinner(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()

	_, err := newTestManager(t, dir, clock, 1).Acquire(JobName("x"), time.Second)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	const contenders = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			m := newTestManager(t, dir, clock, pid)
			<-start
			if _, err := m.Acquire(JobName("x"), time.Minute); err == nil {
				wins.Add(1)
			}
		}(1000 + i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRelease_NilAndMissing(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	assert.NoError(t, m.Release(nil))

	l, err := m.Acquire("job:a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, os.Remove(m.path("job:a")))
	assert.ErrorIs(t, m.Release(l), ErrNotOwner)
}

func TestIsLocked(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	locked, err := m.IsLocked("job:none")
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = m.Acquire("job:a", 10*time.Second)
	require.NoError(t, err)

	locked, err = m.IsLocked("job:a")
	require.NoError(t, err)
	assert.True(t, locked)

	clock.Advance(11 * time.Second)
	locked, err = m.IsLocked("job:a")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestCleanupStale(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	_, err := m.Acquire("job:short-1", time.Second)
	require.NoError(t, err)
	_, err = m.Acquire("job:short-2", 2*time.Second)
	require.NoError(t, err)
	_, err = m.Acquire("job:long", time.Hour)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lock"), []byte("not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	clock.Advance(time.Minute)

	removed, err := m.CleanupStale()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	locked, err := m.IsLocked("job:long")
	require.NoError(t, err)
	assert.True(t, locked)

	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)

	removed, err = m.CleanupStale()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCleanupStale_MissingDirectory(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"))
	removed, err := m.CleanupStale()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCleanupStale_RemovesOrphanTempFiles(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, 100)

	orphan := filepath.Join(dir, tempPrefix+"global-123")
	require.NoError(t, os.WriteFile(orphan, []byte("{}"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	clock.now = time.Now()
	_, err := m.CleanupStale()
	require.NoError(t, err)

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	m := newTestManager(t, dir, clock, os.Getpid())

	_, err := m.Acquire(GlobalName, time.Hour)
	require.NoError(t, err)
	_, err = m.Acquire("job:old", time.Second)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.lock"), []byte("??"), 0644))

	clock.Advance(time.Minute)

	statuses, err := m.List()
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	byName := map[string]Status{}
	for _, st := range statuses {
		byName[st.Name] = st
	}

	assert.False(t, byName[GlobalName].Stale)
	assert.True(t, byName[GlobalName].OwnerAlive)
	assert.True(t, byName["job:old"].Stale)
	assert.True(t, byName["junk"].Corrupt)
	assert.Nil(t, byName["junk"].Lock)
}

func TestEscapeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"global", "global"},
		{"job:backup", "job:backup"},
		{"job:a/b", "job:a%2Fb"},
		{"job:a b", "job:a%20b"},
		{".hidden", "%2Ehidden"},
		{"job:50%", "job:50%25"},
		{"job:v1.2", "job:v1.2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := escapeName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, unescapeName(got))
		})
	}
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
	assert.False(t, processAlive(-1))
}
