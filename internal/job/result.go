package job

import (
	"encoding/json"
	"time"
)

// Status is the summary classification of a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusTimeout Status = "timeout"
)

// Result records one execution attempt of a job.
//
// Duration and MemoryUsed are derived the first time the end values are set
// and are never recomputed afterwards. Setting them explicitly first also
// prevents derivation.
type Result struct {
	JobName     string
	Success     bool
	Skipped     bool
	TimedOut    bool
	Message     string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	StartMemory uint64
	EndMemory   uint64
	MemoryUsed  int64
	Exception   error
	ExitCode    int
	Output      string
	Metadata    map[string]any

	durationSet bool
	memorySet   bool
}

// NewResult starts a result for a job that begins at start with startMemory
// bytes in use.
func NewResult(name string, start time.Time, startMemory uint64) *Result {
	return &Result{
		JobName:     name,
		StartTime:   start,
		StartMemory: startMemory,
		Metadata:    make(map[string]any),
	}
}

// Skipped returns a result for a job that was not run at all.
func Skipped(name, reason string, at time.Time) *Result {
	r := NewResult(name, at, 0)
	r.Skipped = true
	r.Message = reason
	r.SetEndTime(at)
	return r
}

// Failure returns a failed result that never reached the job body.
func Failure(name, message string, err error, at time.Time) *Result {
	r := NewResult(name, at, 0)
	r.Message = message
	r.Exception = err
	r.SetEndTime(at)
	return r
}

// SetEndTime records the end time and derives Duration if not yet derived.
func (r *Result) SetEndTime(t time.Time) {
	r.EndTime = t
	if r.durationSet || r.StartTime.IsZero() {
		return
	}
	r.Duration = t.Sub(r.StartTime)
	r.durationSet = true
}

// SetDuration overrides the duration; later SetEndTime calls keep it.
func (r *Result) SetDuration(d time.Duration) {
	r.Duration = d
	r.durationSet = true
}

// SetEndMemory records the end memory and derives MemoryUsed if not yet
// derived.
func (r *Result) SetEndMemory(m uint64) {
	r.EndMemory = m
	if r.memorySet {
		return
	}
	r.MemoryUsed = int64(m) - int64(r.StartMemory)
	r.memorySet = true
}

// SetMemoryUsed overrides the memory delta; later SetEndMemory calls keep it.
func (r *Result) SetMemoryUsed(m int64) {
	r.MemoryUsed = m
	r.memorySet = true
}

// SetMetadata stores one metadata entry.
func (r *Result) SetMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Apply copies a runner outcome into the result.
func (r *Result) Apply(o Outcome) {
	r.Success = o.Success
	r.Message = o.Message
	r.Output = o.Output
	r.ExitCode = o.ExitCode
	for k, v := range o.Metadata {
		r.SetMetadata(k, v)
	}
}

// Status classifies the result.
func (r *Result) Status() Status {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.TimedOut:
		return StatusTimeout
	case r.Success:
		return StatusSuccess
	default:
		return StatusFailed
	}
}

type resultJSON struct {
	JobName     string         `json:"job_name"`
	Status      Status         `json:"status"`
	Success     bool           `json:"success"`
	Skipped     bool           `json:"skipped"`
	TimedOut    bool           `json:"timed_out"`
	Message     string         `json:"message,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	DurationMS  int64          `json:"duration_ms"`
	StartMemory uint64         `json:"start_memory"`
	EndMemory   uint64         `json:"end_memory"`
	MemoryUsed  int64          `json:"memory_used"`
	Exception   string         `json:"exception,omitempty"`
	ExitCode    int            `json:"exit_code"`
	Output      string         `json:"output,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON renders the result for machine-readable run summaries.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		JobName:     r.JobName,
		Status:      r.Status(),
		Success:     r.Success,
		Skipped:     r.Skipped,
		TimedOut:    r.TimedOut,
		Message:     r.Message,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		DurationMS:  r.Duration.Milliseconds(),
		StartMemory: r.StartMemory,
		EndMemory:   r.EndMemory,
		MemoryUsed:  r.MemoryUsed,
		ExitCode:    r.ExitCode,
		Output:      r.Output,
		Metadata:    r.Metadata,
	}
	if r.Exception != nil {
		out.Exception = r.Exception.Error()
	}
	return json.Marshal(out)
}
