// Package loadshed implements the Load Shedder (C12): a concurrency-permit
// gate in front of evaluation that synthesizes an explicit, in-band
// degraded response rather than letting the engine queue unboundedly
// under overload.
package loadshed

import (
	"github.com/cardguard/fraudengine/internal/metrics"
)

// Config tunes the shedder.
type Config struct {
	Enabled       bool
	MaxConcurrent int
}

// Shedder gates the number of requests concurrently inside evaluation.
// Permits are acquired on request entry and released at the end of the
// request, independent of the result.
type Shedder struct {
	cfg     Config
	permits chan struct{}
	metrics *metrics.Metrics
}

// New builds a Shedder. When cfg.Enabled is false, TryAcquire always
// succeeds and Release is a no-op.
func New(cfg Config, m *metrics.Metrics) *Shedder {
	s := &Shedder{cfg: cfg, metrics: m}
	if cfg.Enabled && cfg.MaxConcurrent > 0 {
		s.permits = make(chan struct{}, cfg.MaxConcurrent)
	}
	return s
}

// TryAcquire attempts to reserve a permit. It returns false immediately
// (never blocks) when the gate is saturated.
func (s *Shedder) TryAcquire() bool {
	if s.permits == nil {
		return true
	}
	select {
	case s.permits <- struct{}{}:
		s.metrics.LoadShedInFlight.Inc()
		return true
	default:
		s.metrics.LoadShedRejectedTotal.Inc()
		return false
	}
}

// Release returns a held permit. Safe to call even when the gate is
// disabled.
func (s *Shedder) Release() {
	if s.permits == nil {
		return
	}
	<-s.permits
	s.metrics.LoadShedInFlight.Dec()
}

// InFlight reports the number of permits currently held.
func (s *Shedder) InFlight() int {
	if s.permits == nil {
		return 0
	}
	return len(s.permits)
}
