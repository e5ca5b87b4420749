package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcast result labels.
const (
	BroadcastOK    = "ok"
	BroadcastError = "error"
)

// Metrics provides observability for broadcasts and per-destination deliveries.
type Metrics struct {
	Deliveries       *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	Broadcasts       *prometheus.CounterVec
	Pruned           prometheus.Counter
}

// New creates the notification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pushcast_deliveries_total",
			Help: "Push deliveries by result",
		}, []string{"result"}),
		DeliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pushcast_delivery_duration_seconds",
			Help:    "Time spent handing one message to a push service",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		Broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pushcast_broadcasts_total",
			Help: "Broadcast operations by result",
		}, []string{"result"}),
		Pruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "pushcast_pruned_subscriptions_total",
			Help: "Subscriptions removed after the push service reported them gone",
		}),
	}
}

// ObserveDelivery records one settled delivery.
func (m *Metrics) ObserveDelivery(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Inc()
	m.DeliveryDuration.Observe(d.Seconds())
}

// IncBroadcast records a finished broadcast.
func (m *Metrics) IncBroadcast(result string) {
	if m != nil {
		m.Broadcasts.WithLabelValues(result).Inc()
	}
}

// AddPruned records pruned registry entries.
func (m *Metrics) AddPruned(n int) {
	if m != nil && n > 0 {
		m.Pruned.Add(float64(n))
	}
}
