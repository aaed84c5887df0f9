// Package metrics exposes Prometheus collectors for interaction handling.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for the interactions counter.
const (
	OutcomeRejected     = "rejected"
	OutcomeDecodeError  = "decode_error"
	OutcomePong         = "pong"
	OutcomeOK           = "ok"
	OutcomeHandlerError = "handler_error"
	OutcomeInvalid      = "invalid_options"
	OutcomeDeferred     = "deferred"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	interactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inFlight     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildwarden",
			Name:      "interactions_total",
			Help:      "Interactions received, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "guildwarden",
			Name:      "command_duration_seconds",
			Help:      "Command handler latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5, 10, 30},
		}, []string{"command"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "guildwarden",
			Name:      "deferred_in_flight",
			Help:      "Deferred commands still running.",
		}),
	}
	m.registry.MustRegister(
		m.interactions,
		m.duration,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Interaction counts one interaction outcome. Safe on a nil receiver.
func (m *Metrics) Interaction(outcome string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(outcome).Inc()
}

// ObserveCommand records handler latency for a command.
func (m *Metrics) ObserveCommand(command string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(command).Observe(d.Seconds())
}

// DeferredStarted and DeferredFinished track background commands.
func (m *Metrics) DeferredStarted() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) DeferredFinished() {
	if m != nil {
		m.inFlight.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
