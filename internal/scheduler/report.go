package scheduler

import (
	"time"

	"github.com/aatumaykin/nexcron/internal/job"
	"github.com/aatumaykin/nexcron/internal/resource"
)

// State is a step of the cycle state machine.
type State string

const (
	StateStart             State = "START"
	StateGlobalLockPending State = "GLOBAL_LOCK_PENDING"
	StateGlobalLockDenied  State = "GLOBAL_LOCK_DENIED"
	StateGlobalLockHeld    State = "GLOBAL_LOCK_HELD"
	StateResourceCheck     State = "RESOURCE_CHECK"
	StateAdmissionDenied   State = "ADMISSION_DENIED"
	StateAdmitted          State = "ADMITTED"
	StateDispatch          State = "DISPATCH"
	StatePerJob            State = "PER_JOB" // due jobs handed to workers
	StateDrain             State = "DRAIN"
	StateCleanup           State = "CLEANUP"
	StateDone              State = "DONE"
	StateAborted           State = "ABORTED"
)

// Outcome labels used for cycle metrics and summaries.
const (
	OutcomeCompleted = "completed"
	OutcomeDenied    = "denied"
	OutcomeSkipped   = "skipped"
	OutcomeAborted   = "aborted"
)

// CycleReport is what one cycle returns.
type CycleReport struct {
	ID         string
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []*job.Result
	SkipReason string
	Admission  resource.Decision
	Cleaned    int
	Swept      bool
}

// Duration is the wall time of the cycle.
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome classifies the terminal state.
func (r *CycleReport) Outcome() string {
	switch r.State {
	case StateGlobalLockDenied:
		return OutcomeDenied
	case StateAdmissionDenied:
		return OutcomeSkipped
	case StateAborted:
		return OutcomeAborted
	default:
		return OutcomeCompleted
	}
}

// Summary counts results by status.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	TimedOut  int
}

// Summary counts the results of the cycle.
func (r *CycleReport) Summary() Summary {
	var sum Summary
	for _, res := range r.Results {
		switch res.Status() {
		case job.StatusSuccess:
			sum.Succeeded++
		case job.StatusSkipped:
			sum.Skipped++
		case job.StatusTimeout:
			sum.TimedOut++
		default:
			sum.Failed++
		}
	}
	return sum
}
