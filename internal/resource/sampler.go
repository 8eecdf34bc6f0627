// Package resource decides whether a scheduling cycle may start, based on
// the host load average and the memory held by the scheduler process.
package resource

import (
	"fmt"
	"runtime"

	"github.com/prometheus/procfs"
)

// Sample is one reading of the host and process counters.
type Sample struct {
	Load1             float64 // 1-minute load average
	MemoryBytes       uint64  // resident memory of this process
	MemAvailableBytes uint64  // host memory available, 0 if unknown
}

// Sampler reads current resource usage.
type Sampler interface {
	Sample() (Sample, error)
}

// ProcSampler reads /proc through procfs.
type ProcSampler struct {
	fs procfs.FS
}

// NewProcSampler returns a sampler for the default /proc mount.
func NewProcSampler() (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &ProcSampler{fs: fs}, nil
}

// Sample returns the load average and process RSS. Host meminfo is best
// effort and left zero when unreadable.
func (s *ProcSampler) Sample() (Sample, error) {
	load, err := s.fs.LoadAvg()
	if err != nil {
		return Sample{}, fmt.Errorf("read loadavg: %w", err)
	}

	out := Sample{Load1: load.Load1, MemoryBytes: s.processRSS()}
	if mem, err := s.fs.Meminfo(); err == nil && mem.MemAvailable != nil {
		out.MemAvailableBytes = *mem.MemAvailable * 1024
	}
	return out, nil
}

// Memory returns the resident memory of this process in bytes.
func (s *ProcSampler) Memory() uint64 {
	return s.processRSS()
}

func (s *ProcSampler) processRSS() uint64 {
	if self, err := s.fs.Self(); err == nil {
		if status, err := self.NewStatus(); err == nil && status.VmRSS > 0 {
			return status.VmRSS
		}
	}
	return runtimeMemory()
}

// runtimeMemory is the fallback when /proc/self is unavailable.
func runtimeMemory() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Sys
}

// StaticSampler returns a fixed reading. Used in tests and on hosts without
// procfs.
type StaticSampler struct {
	Value Sample
	Err   error
}

// Sample returns the configured reading.
func (s StaticSampler) Sample() (Sample, error) {
	return s.Value, s.Err
}

// Memory returns the configured process memory.
func (s StaticSampler) Memory() uint64 {
	return s.Value.MemoryBytes
}
