package job

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)

func TestResult_DurationDerivedFromEndTime(t *testing.T) {
	r := NewResult("a", t0, 0)
	r.SetEndTime(t0.Add(3 * time.Second))
	assert.Equal(t, 3*time.Second, r.Duration)

	// First derivation wins.
	r.SetEndTime(t0.Add(10 * time.Second))
	assert.Equal(t, 3*time.Second, r.Duration)
	assert.True(t, r.EndTime.Equal(t0.Add(10*time.Second)))
}

func TestResult_ExplicitDurationNotOverwritten(t *testing.T) {
	r := NewResult("a", t0, 0)
	r.SetDuration(time.Minute)
	r.SetEndTime(t0.Add(3 * time.Second))
	assert.Equal(t, time.Minute, r.Duration)
}

func TestResult_NoDerivationWithoutStart(t *testing.T) {
	r := &Result{JobName: "a"}
	r.SetEndTime(t0)
	assert.Zero(t, r.Duration)

	r.StartTime = t0.Add(-time.Second)
	r.SetEndTime(t0)
	assert.Equal(t, time.Second, r.Duration)
}

func TestResult_MemoryDerivation(t *testing.T) {
	r := NewResult("a", t0, 1000)
	r.SetEndMemory(1500)
	assert.Equal(t, int64(500), r.MemoryUsed)

	r.SetEndMemory(9000)
	assert.Equal(t, int64(500), r.MemoryUsed)
	assert.Equal(t, uint64(9000), r.EndMemory)

	shrink := NewResult("b", t0, 2000)
	shrink.SetEndMemory(1000)
	assert.Equal(t, int64(-1000), shrink.MemoryUsed)

	explicit := NewResult("c", t0, 0)
	explicit.SetMemoryUsed(42)
	explicit.SetEndMemory(100)
	assert.Equal(t, int64(42), explicit.MemoryUsed)
}

func TestResult_Status(t *testing.T) {
	assert.Equal(t, StatusSkipped, Skipped("a", "already running", t0).Status())
	assert.Equal(t, StatusFailed, Failure("a", "boom", errors.New("boom"), t0).Status())

	r := NewResult("a", t0, 0)
	r.Success = true
	assert.Equal(t, StatusSuccess, r.Status())

	r.Success = false
	r.TimedOut = true
	assert.Equal(t, StatusTimeout, r.Status())
}

func TestResult_Apply(t *testing.T) {
	r := NewResult("a", t0, 0)
	r.SetMetadata("attempt", 1)
	r.Apply(Outcome{
		Success:  true,
		Message:  "done",
		Output:   "hello",
		ExitCode: 0,
		Metadata: map[string]any{"rows": 3},
	})

	assert.True(t, r.Success)
	assert.Equal(t, "done", r.Message)
	assert.Equal(t, "hello", r.Output)
	assert.Equal(t, 1, r.Metadata["attempt"])
	assert.Equal(t, 3, r.Metadata["rows"])
}

func TestResult_MarshalJSON(t *testing.T) {
	r := Failure("sync", "job raised", errors.New("disk full"), t0)
	r.SetMetadata("host", "a")

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sync", decoded["job_name"])
	assert.Equal(t, "failed", decoded["status"])
	assert.Equal(t, "disk full", decoded["exception"])
	assert.Equal(t, float64(0), decoded["duration_ms"])
	assert.Equal(t, map[string]any{"host": "a"}, decoded["metadata"])
}
