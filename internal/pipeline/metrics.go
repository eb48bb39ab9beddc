package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters, readable while the pipeline runs.
type Metrics struct {
	Received     atomic.Uint64
	Filtered     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	Truncated    atomic.Uint64
	Tunnels      atomic.Uint64
	BadChecksums atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Filtered.Store(0)
	m.Decoded.Store(0)
	m.DecodeErrors.Store(0)
	m.Truncated.Store(0)
	m.Tunnels.Store(0)
	m.BadChecksums.Store(0)
	m.Reported.Store(0)
	m.ReportErrors.Store(0)
}
