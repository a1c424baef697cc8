// Package metrics exposes engine counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons.
const (
	ReasonInvalid   = "invalid"
	ReasonUndecoded = "undecoded"
)

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	eventsApplied *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	operations    *prometheus.CounterVec
}

// New creates the counters on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmirror_events_applied_total",
			Help: "Events applied to the chat state, by kind.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmirror_events_dropped_total",
			Help: "Events rejected before reaching the chat state, by reason.",
		}, []string{"reason"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatmirror_operations_total",
			Help: "Remote operation phases observed, by kind and phase.",
		}, []string{"kind", "phase"}),
	}
	m.registry.MustRegister(
		m.eventsApplied,
		m.eventsDropped,
		m.operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// WatchBusDrops exports the bus's dropped-delivery count.
func (m *Metrics) WatchBusDrops(dropped func() uint64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "chatmirror_bus_dropped_total",
		Help: "Bus deliveries dropped because a lossy subscriber was full.",
	}, func() float64 { return float64(dropped()) }))
}

// EventApplied counts an applied event.
func (m *Metrics) EventApplied(kind string) {
	if m == nil {
		return
	}
	m.eventsApplied.WithLabelValues(kind).Inc()
}

// EventDropped counts a rejected event.
func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// Operation counts one phase of a remote operation.
func (m *Metrics) Operation(kind, phase string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, phase).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
