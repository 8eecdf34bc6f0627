package resource

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/nexcron/internal/logger"
)

func TestGuard_ShouldAdmit(t *testing.T) {
	tests := []struct {
		name   string
		sample Sample
		limits Limits
		admit  bool
		reason string
	}{
		{
			name:   "under limits",
			sample: Sample{Load1: 1.5, MemoryBytes: 10 * bytesPerMB},
			limits: Limits{SkipOnHighLoad: true, MaxLoadAverage: 10, MaxMemoryMB: 512},
			admit:  true,
		},
		{
			name:   "high load",
			sample: Sample{Load1: 12, MemoryBytes: 10 * bytesPerMB},
			limits: Limits{SkipOnHighLoad: true, MaxLoadAverage: 10, MaxMemoryMB: 512},
			reason: "load average 12.00 exceeds 10.00",
		},
		{
			name:   "high load ignored when disabled",
			sample: Sample{Load1: 12, MemoryBytes: 10 * bytesPerMB},
			limits: Limits{SkipOnHighLoad: false, MaxLoadAverage: 10, MaxMemoryMB: 512},
			admit:  true,
		},
		{
			name:   "load equal to ceiling admitted",
			sample: Sample{Load1: 10},
			limits: Limits{SkipOnHighLoad: true, MaxLoadAverage: 10},
			admit:  true,
		},
		{
			name:   "memory over ceiling",
			sample: Sample{Load1: 0.1, MemoryBytes: 600 * bytesPerMB},
			limits: Limits{SkipOnHighLoad: true, MaxLoadAverage: 10, MaxMemoryMB: 512},
			reason: "memory usage 600.0 MB exceeds 512.0 MB",
		},
		{
			name:   "memory check disabled",
			sample: Sample{Load1: 0.1, MemoryBytes: 600 * bytesPerMB},
			limits: Limits{SkipOnHighLoad: true, MaxLoadAverage: 10},
			admit:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(StaticSampler{Value: tt.sample}, nil)
			d := g.ShouldAdmit(tt.limits)
			assert.Equal(t, tt.admit, d.Admit)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.sample.Load1, d.Load1)
		})
	}
}

func TestGuard_SamplerErrorAdmits(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, "text", "warn")
	require.NoError(t, err)

	g := NewGuard(StaticSampler{Err: errors.New("no procfs")}, log)
	d := g.ShouldAdmit(Limits{SkipOnHighLoad: true, MaxLoadAverage: 0.1, MaxMemoryMB: 1})

	assert.True(t, d.Admit)
	assert.Contains(t, buf.String(), "resource sampling failed")
	assert.Contains(t, buf.String(), "no procfs")
}

func TestGuard_Memory(t *testing.T) {
	g := NewGuard(StaticSampler{Value: Sample{MemoryBytes: 4096}}, nil)
	assert.Equal(t, uint64(4096), g.Memory())
}

func TestProcSampler(t *testing.T) {
	if _, err := os.Stat("/proc/loadavg"); err != nil {
		t.Skip("procfs not available")
	}

	s, err := NewProcSampler()
	require.NoError(t, err)

	sample, err := s.Sample()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sample.Load1, 0.0)
	assert.Positive(t, sample.MemoryBytes)
	assert.Positive(t, s.Memory())
}
