package resource

import (
	"fmt"

	"github.com/aatumaykin/nexcron/internal/logger"
)

const bytesPerMB = 1024 * 1024

// Limits are the ceilings a cycle is checked against.
type Limits struct {
	SkipOnHighLoad bool
	MaxLoadAverage float64
	MaxMemoryMB    float64 // 0 disables the memory check
}

// Decision is the result of one admission check.
type Decision struct {
	Admit    bool
	Reason   string
	Load1    float64
	MemoryMB float64
}

// Guard is the admission gate consulted once per cycle.
type Guard struct {
	sampler Sampler
	logger  *logger.Logger
}

// NewGuard returns a guard reading from sampler.
func NewGuard(sampler Sampler, log *logger.Logger) *Guard {
	if log == nil {
		log = logger.Nop()
	}
	return &Guard{sampler: sampler, logger: log}
}

// ShouldAdmit samples usage and compares it with limits. A sampling failure
// admits the cycle: the gate is best effort.
func (g *Guard) ShouldAdmit(limits Limits) Decision {
	sample, err := g.sampler.Sample()
	if err != nil {
		g.logger.Warn("resource sampling failed, admitting cycle",
			logger.Field{Key: "error", Value: err.Error()})
		return Decision{Admit: true, Reason: "resource sampling unavailable"}
	}

	d := Decision{
		Admit:    true,
		Load1:    sample.Load1,
		MemoryMB: float64(sample.MemoryBytes) / bytesPerMB,
	}

	if limits.SkipOnHighLoad && sample.Load1 > limits.MaxLoadAverage {
		d.Admit = false
		d.Reason = fmt.Sprintf("load average %.2f exceeds %.2f", sample.Load1, limits.MaxLoadAverage)
		return d
	}
	if limits.MaxMemoryMB > 0 && d.MemoryMB > limits.MaxMemoryMB {
		d.Admit = false
		d.Reason = fmt.Sprintf("memory usage %.1f MB exceeds %.1f MB", d.MemoryMB, limits.MaxMemoryMB)
		return d
	}
	return d
}

// Memory returns the current process memory in bytes, or 0 when the sampler
// cannot tell.
func (g *Guard) Memory() uint64 {
	if m, ok := g.sampler.(interface{ Memory() uint64 }); ok {
		return m.Memory()
	}
	sample, err := g.sampler.Sample()
	if err != nil {
		return 0
	}
	return sample.MemoryBytes
}
