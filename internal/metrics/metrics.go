// Package metrics exposes scheduler counters in Prometheus format. The
// scheduler runs as a short-lived process, so instead of serving them the
// collectors are written to a node_exporter textfile at the end of a cycle.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "nexcron"

// Metrics holds the scheduler collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	cyclesTotal       *prometheus.CounterVec
	jobsTotal         *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	staleLocksRemoved prometheus.Counter
	lastCycle         prometheus.Gauge
	cycleDuration     prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.NewRegistry())
}

// NewWithRegistry creates the collectors on reg.
func NewWithRegistry(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		registry: reg,
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Scheduling cycles by outcome",
			},
			[]string{"outcome"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Job executions by status",
			},
			[]string{"job", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of job executions",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 900},
			},
			[]string{"job"},
		),
		staleLocksRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_locks_removed_total",
				Help:      "Stale lock files removed by cleanup",
			},
		),
		lastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix time the last cycle finished",
			},
		),
		cycleDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_cycle_duration_seconds",
				Help:      "Wall time of the last cycle",
			},
		),
	}

	reg.MustRegister(
		m.cyclesTotal,
		m.jobsTotal,
		m.jobDuration,
		m.staleLocksRemoved,
		m.lastCycle,
		m.cycleDuration,
	)

	return m
}

// RecordCycle counts a finished cycle.
func (m *Metrics) RecordCycle(outcome string, finishedAt time.Time, duration time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.lastCycle.Set(float64(finishedAt.Unix()))
	m.cycleDuration.Set(duration.Seconds())
}

// RecordJob counts a job result. Skipped jobs do not observe a duration.
func (m *Metrics) RecordJob(job, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(job, status).Inc()
	if status != "skipped" {
		m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// AddStaleLocksRemoved adds n removed stale locks.
func (m *Metrics) AddStaleLocksRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.staleLocksRemoved.Add(float64(n))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes all collectors to path atomically. The directory is
// created if needed.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
