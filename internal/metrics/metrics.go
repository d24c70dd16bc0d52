// Package metrics is the Metrics Registry (C14): in-process counters for
// every invariant named across the engine, exposed via
// github.com/prometheus/client_golang, mirroring the legacy service's
// escrow metrics (promauto factories, one struct field per series).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter, gauge, and histogram the engine emits.
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	DecisionLatencyMs prometheus.Histogram

	AsyncEnqueueOK      prometheus.Counter
	AsyncEnqueueDropped prometheus.Counter

	OutboxXAddSuccess prometheus.Counter
	OutboxXAddFailure prometheus.Counter

	OutboxPublishSuccess prometheus.Counter
	OutboxPublishFailure prometheus.Counter
	OutboxReclaimedTotal prometheus.Counter

	HotReloadSuccessTotal *prometheus.CounterVec
	HotReloadFailureTotal *prometheus.CounterVec

	LoadShedRejectedTotal prometheus.Counter
	LoadShedInFlight      prometheus.Gauge

	VelocityCheckTotal       *prometheus.CounterVec
	VelocityBreakerOpenTotal prometheus.Counter
}

// New registers every metric against the default Prometheus registerer.
func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_decisions_total",
			Help: "Total evaluated decisions by decision and engine_mode.",
		}, []string{"decision", "engine_mode"}),

		DecisionLatencyMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_decision_latency_ms",
			Help:    "End-to-end evaluation latency in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250, 500, 1000},
		}),

		AsyncEnqueueOK: promauto.NewCounter(prometheus.CounterOpts{
			Name: "async_enqueue_ok",
			Help: "Post-decision events successfully enqueued to the durability pipeline.",
		}),
		AsyncEnqueueDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "async_enqueue_dropped",
			Help: "Post-decision events dropped because the durability queue was full.",
		}),

		OutboxXAddSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_xadd_success",
			Help: "Durable-stream appends that succeeded.",
		}),
		OutboxXAddFailure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_xadd_failure",
			Help: "Durable-stream appends that failed.",
		}),

		OutboxPublishSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_publish_success",
			Help: "Stream entries acknowledged after a successful event-bus publish.",
		}),
		OutboxPublishFailure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_publish_failure",
			Help: "Stream entries left pending after a failed event-bus publish.",
		}),
		OutboxReclaimedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "outbox_reclaimed_total",
			Help: "Stalled pending entries reclaimed by the reclaimer.",
		}),

		HotReloadSuccessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hot_reload_success_total",
			Help: "Successful ruleset hot swaps by (country, key).",
		}, []string{"country", "ruleset_key"}),
		HotReloadFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hot_reload_failure_total",
			Help: "Failed ruleset hot swap attempts by (country, key).",
		}, []string{"country", "ruleset_key"}),

		LoadShedRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "load_shed_rejected_total",
			Help: "Requests rejected by the load shedder's concurrency gate.",
		}),
		LoadShedInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "load_shed_in_flight",
			Help: "Requests currently holding a load-shedder permit.",
		}),

		VelocityCheckTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "velocity_check_total",
			Help: "Velocity checks by outcome.",
		}, []string{"outcome"}),
		VelocityBreakerOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "velocity_breaker_open_total",
			Help: "Velocity checks short-circuited because the breaker was open.",
		}),
	}
}
