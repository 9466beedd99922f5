// Package metrics exposes scanner counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sparques/rftrx"
)

// StatusSource is what the collectors read from. *rftrx.Scanner satisfies it.
type StatusSource interface {
	Status() rftrx.Status
}

// Metrics holds the collectors for one scanner
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec // emitted events by protocol
}

// New registers the collectors on a fresh registry.
func New(src StatusSource) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string, get func(rftrx.Counters) uint32) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "rftrx",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(get(src.Status().Counters))
		})
	}
	counter("received_signals_total", "Pulse trains handed to the scanner, noise included",
		func(c rftrx.Counters) uint32 { return c.Received })
	counter("decoded_signals_total", "Pulse trains a decoder accepted",
		func(c rftrx.Counters) uint32 { return c.Decoded })
	counter("rejected_signals_total", "Pulse trains no decoder accepted",
		func(c rftrx.Counters) uint32 { return c.Rejected })
	counter("suppressed_repeats_total", "Repeated transmissions dropped inside the repeat window",
		func(c rftrx.Counters) uint32 { return c.Suppressed })
	counter("noise_signals_total", "Captures shorter than the minimum pulse count",
		func(c rftrx.Counters) uint32 { return c.Noise })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rftrx",
		Name:      "scanning",
		Help:      "1 while the receiver is listening",
	}, func() float64 {
		if src.Status().Scanning {
			return 1
		}
		return 0
	})

	return &Metrics{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rftrx",
			Name:      "events_total",
			Help:      "Events emitted, by protocol",
		}, []string{"protocol"}),
	}
}

// Observe counts an emitted event
func (m *Metrics) Observe(ev rftrx.Event) {
	m.events.WithLabelValues(ev.Protocol).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
