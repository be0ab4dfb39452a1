package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the transaction collectors.
type Metrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newtcli_transactions_total",
			Help: "Device transactions by session, kind and result.",
		}, []string{"session", "kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newtcli_transaction_duration_seconds",
			Help:    "Time spent waiting for the device per transaction.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"session", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.duration)
	}
	return m
}

// Collectors returns the collectors for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.transactions, m.duration}
}

func (m *Metrics) observe(session string, kind Kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(session, string(kind), result).Inc()
	m.duration.WithLabelValues(session, string(kind)).Observe(d.Seconds())
}
