package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the subscription registry.
type Metrics struct {
	Registered    *prometheus.CounterVec
	Duplicates    prometheus.Counter
	Removed       prometheus.Counter
	Subscriptions prometheus.Gauge
}

// New creates the registry metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pushcast_subscriptions_registered_total",
			Help: "New subscriptions added to the registry by browser family",
		}, []string{"browser"}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "pushcast_subscriptions_duplicate_total",
			Help: "Registrations ignored because the endpoint was already known",
		}),
		Removed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pushcast_subscriptions_removed_total",
			Help: "Subscriptions removed from the registry",
		}),
		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pushcast_subscriptions",
			Help: "Current number of registered subscriptions",
		}),
	}
}

// IncRegistered records a new registry entry.
func (m *Metrics) IncRegistered(browser string) {
	if m != nil {
		m.Registered.WithLabelValues(browser).Inc()
	}
}

// IncDuplicate records an idempotent no-op registration.
func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}

// IncRemoved records a removal.
func (m *Metrics) IncRemoved() {
	if m != nil {
		m.Removed.Inc()
	}
}

// SetSize publishes the registry size.
func (m *Metrics) SetSize(n int) {
	if m != nil {
		m.Subscriptions.Set(float64(n))
	}
}
