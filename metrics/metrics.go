// Package metrics exposes Prometheus instrumentation for Connections and
// Sessions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "langclient"

// Metrics bundles the collectors shared by every Connection of a process.
type Metrics struct {
	reg prometheus.Gatherer

	messages       *prometheus.CounterVec
	inflight       prometheus.Gauge
	requestSeconds *prometheus.HistogramVec
	protocolErrors *prometheus.CounterVec
	transitions    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		reg: reg,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "JSON-RPC messages by direction and kind.",
		}, []string{"direction", "type"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Outbound requests awaiting a response.",
		}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of outbound requests by method and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Inbound messages dropped as protocol errors.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Connection state transitions by target state.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.messages, m.inflight, m.requestSeconds, m.protocolErrors, m.transitions)
	return m
}

// Direction labels.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Message counts one message of kind typ travelling in direction dir.
func (m *Metrics) Message(dir, typ string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(dir, typ).Inc()
}

// RequestStarted marks an outbound request as in flight and returns a func
// that records its completion with the given outcome.
func (m *Metrics) RequestStarted(method string) (done func(outcome string)) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.inflight.Inc()
	return func(outcome string) {
		m.inflight.Dec()
		m.requestSeconds.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
	}
}

// ProtocolError counts a dropped inbound message.
func (m *Metrics) ProtocolError(reason string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(reason).Inc()
}

// Transition counts a state transition.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
