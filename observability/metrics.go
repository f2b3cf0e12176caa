package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"clearhold/core/events"
)

// SettlementMetrics records settlement activity segmented by event type plus
// gateway request outcomes.
type SettlementMetrics struct {
	transitions *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	settlementOnce sync.Once
	settlementReg  *SettlementMetrics
)

// Metrics returns the lazily-initialised settlement metrics registry.
func Metrics() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementReg = &SettlementMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clearhold",
				Subsystem: "settlement",
				Name:      "transitions_total",
				Help:      "Total committed state transitions segmented by event type.",
			}, []string{"event"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "clearhold",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and status.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "clearhold",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
		}
		prometheus.MustRegister(settlementReg.transitions, settlementReg.requests, settlementReg.latency)
	})
	return settlementReg
}

// ObserveTransition increments the transition counter for the event type.
func (m *SettlementMetrics) ObserveTransition(eventType string) {
	if m == nil || eventType == "" {
		return
	}
	m.transitions.WithLabelValues(eventType).Inc()
}

// ObserveRequest records a completed gateway request.
func (m *SettlementMetrics) ObserveRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, status).Inc()
	m.latency.WithLabelValues(route).Observe(seconds)
}

// Emitter adapts the metrics registry to the core event bus so every
// committed transition is counted without coupling the engines to Prometheus.
type Emitter struct {
	metrics *SettlementMetrics
}

// NewEmitter returns an emitter feeding the shared metrics registry.
func NewEmitter() *Emitter {
	return &Emitter{metrics: Metrics()}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	e.metrics.ObserveTransition(evt.EventType())
}
