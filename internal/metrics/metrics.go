// Package metrics exposes emulator activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/foldscreen/schema"
)

// Metrics records emulator activity on its own registry.
//
// Metrics:
//   - foldscreen_invalidations_total{result} - invalidations, scheduled or coalesced
//   - foldscreen_change_dispatches_total - change notifications dispatched
//   - foldscreen_resizes_total - viewport resizes reported
//   - foldscreen_bridge_messages_total{result} - update messages by outcome
//   - foldscreen_contexts_live - browsing contexts currently open
type Metrics struct {
	registry *prometheus.Registry

	Invalidations  *prometheus.CounterVec
	Dispatches     prometheus.Counter
	Resizes        prometheus.Counter
	BridgeMessages *prometheus.CounterVec
	Contexts       prometheus.Gauge
}

// New creates the collectors on a fresh registry. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foldscreen_invalidations_total",
				Help: "Total number of change invalidations",
			},
			[]string{"result"}, // "scheduled" or "coalesced"
		),
		Dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "foldscreen_change_dispatches_total",
			Help: "Total number of change notifications dispatched",
		}),
		Resizes: factory.NewCounter(prometheus.CounterOpts{
			Name: "foldscreen_resizes_total",
			Help: "Total number of viewport resizes reported",
		}),
		BridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foldscreen_bridge_messages_total",
				Help: "Total number of cross-context update messages",
			},
			[]string{"result"}, // "applied", "invalid" or "unknown_action"
		),
		Contexts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "foldscreen_contexts_live",
			Help: "Number of browsing contexts currently open",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Invalidated counts an invalidation.
func (m *Metrics) Invalidated(_ schema.ContextID, coalesced bool) {
	if coalesced {
		m.Invalidations.WithLabelValues("coalesced").Inc()
		return
	}
	m.Invalidations.WithLabelValues("scheduled").Inc()
}

// Dispatched counts a change notification.
func (m *Metrics) Dispatched(schema.ContextID) {
	m.Dispatches.Inc()
}

// Resized counts a viewport resize.
func (m *Metrics) Resized(schema.ContextID) {
	m.Resizes.Inc()
}

// BridgeMessage counts an update message by outcome.
func (m *Metrics) BridgeMessage(_ schema.ContextID, err error) {
	m.BridgeMessages.WithLabelValues(bridgeResult(err)).Inc()
}

// ContextsLive sets the number of open contexts.
func (m *Metrics) ContextsLive(n int) {
	m.Contexts.Set(float64(n))
}

func bridgeResult(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, schema.ErrUnknownAction):
		return "unknown_action"
	default:
		return "invalid"
	}
}
