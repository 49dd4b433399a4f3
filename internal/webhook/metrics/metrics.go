package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Events            *prometheus.CounterVec
	SignatureFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Events: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lodger_webhook_events_total",
			Help: "Total number of webhook events received by type and outcome",
		}, []string{"event_type", "outcome"}),
		SignatureFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lodger_webhook_signature_failures_total",
			Help: "Total number of webhook deliveries rejected for a bad signature",
		}),
	}
}

func (m *Metrics) IncrementEvent(eventType, outcome string) {
	m.Events.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) IncrementSignatureFailure() {
	m.SignatureFailures.Inc()
}
