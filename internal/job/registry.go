package job

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aatumaykin/nexcron/internal/cron"
)

var (
	// ErrDuplicateJob matches any *DuplicateJobError.
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrInvalidDescriptor is returned for descriptors missing a name or a
	// runner, or with a negative timeout.
	ErrInvalidDescriptor = errors.New("invalid job descriptor")
)

// DuplicateJobError is returned by Register for a name already in use.
type DuplicateJobError struct {
	Name string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job %q already registered", e.Name)
}

func (e *DuplicateJobError) Is(target error) bool {
	return target == ErrDuplicateJob
}

// Registry holds job descriptors in registration order.
type Registry struct {
	mu    sync.RWMutex
	jobs  []Descriptor
	index map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register validates d and adds it. Schedules are parsed here so that a bad
// expression fails before any cycle runs.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Job == nil {
		return fmt.Errorf("%w: job %q has no runner", ErrInvalidDescriptor, d.Name)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("%w: job %q has negative timeout", ErrInvalidDescriptor, d.Name)
	}

	expr, err := cron.Parse(d.Schedule)
	if err != nil {
		return fmt.Errorf("job %q: %w", d.Name, err)
	}
	d.expr = expr

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[d.Name]; exists {
		return &DuplicateJobError{Name: d.Name}
	}
	r.index[d.Name] = len(r.jobs)
	r.jobs = append(r.jobs, d)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// DueJobs returns the enabled jobs whose schedule matches at, by ascending
// priority. Equal priorities keep registration order.
func (r *Registry) DueJobs(at time.Time) []Descriptor {
	r.mu.RLock()
	var due []Descriptor
	for _, d := range r.jobs {
		if d.Due(at) {
			due = append(due, d)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].Priority < due[j].Priority })
	return due
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.jobs[i], true
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
