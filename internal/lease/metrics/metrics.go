package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Transitions *prometheus.CounterVec
	Expired     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lodger_lease_transitions_total",
			Help: "Total number of lease transitions by type",
		}, []string{"transition"}),
		Expired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lodger_leases_expired_total",
			Help: "Total number of leases flipped to expired by the sweep",
		}),
	}
}

func (m *Metrics) IncrementTransition(transition string) {
	m.Transitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) AddExpired(n int) {
	m.Expired.Add(float64(n))
}
