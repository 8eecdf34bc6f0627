package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherNames(t *testing.T, m *Metrics) map[string]int {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	out := make(map[string]int)
	for _, f := range families {
		out[f.GetName()] = len(f.GetMetric())
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	m := New("")

	finished := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)
	m.RecordCycle("completed", finished, 3*time.Second)
	m.RecordJob("backup", "success", 2*time.Second)
	m.RecordJob("backup", "failed", time.Second)
	m.RecordJob("report", "skipped", 0)
	m.AddStaleLocksRemoved(2)
	m.AddStaleLocksRemoved(0)

	names := gatherNames(t, m)
	assert.Equal(t, 1, names["nexcron_cycles_total"])
	assert.Equal(t, 3, names["nexcron_jobs_total"])
	// Skipped jobs do not observe durations.
	assert.Equal(t, 1, names["nexcron_job_duration_seconds"])
	assert.Equal(t, 1, names["nexcron_stale_locks_removed_total"])
	assert.Equal(t, 1, names["nexcron_last_cycle_timestamp_seconds"])
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New("test")
	m.RecordCycle("skipped", time.Unix(1700000000, 0), time.Second)
	m.RecordJob("sync", "success", 500*time.Millisecond)

	path := filepath.Join(t.TempDir(), "textfile", "nexcron.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `test_cycles_total{outcome="skipped"} 1`)
	assert.Contains(t, text, `test_jobs_total{job="sync",status="success"} 1`)
	assert.Contains(t, text, "test_last_cycle_timestamp_seconds 1.7e+09")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCycle("completed", time.Now(), time.Second)
		m.RecordJob("a", "success", time.Second)
		m.AddStaleLocksRemoved(1)
		assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))
	})
	assert.Nil(t, m.Registry())
}
