package outcomes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the outcome sink.
type Metrics struct {
	Published    prometheus.Counter
	Failures     prometheus.Counter
	Dropped      prometheus.Counter
	BreakerState prometheus.Gauge
}

// NewMetrics creates the sink metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "pushcast_outcomes_published_total",
			Help: "Delivery outcome records acknowledged by the broker",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pushcast_outcomes_publish_failures_total",
			Help: "Broadcasts whose outcomes could not be produced",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pushcast_outcomes_dropped_total",
			Help: "Delivery outcome records dropped while the circuit breaker was open",
		}),
		BreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pushcast_outcomes_circuit_breaker_state",
			Help: "Outcome sink circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) addPublished(n int) {
	if m != nil {
		m.Published.Add(float64(n))
	}
}

func (m *Metrics) incFailures() {
	if m != nil {
		m.Failures.Inc()
	}
}

func (m *Metrics) addDropped(n int) {
	if m != nil {
		m.Dropped.Add(float64(n))
	}
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}
