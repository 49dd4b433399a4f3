package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	InvoicesCreated   *prometheus.CounterVec
	PaymentsInitiated prometheus.Counter
	PaymentsSettled   *prometheus.CounterVec
	SessionsReused    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		InvoicesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lodger_invoices_created_total",
			Help: "Total number of invoices created by category",
		}, []string{"category"}),
		PaymentsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lodger_payments_initiated_total",
			Help: "Total number of checkout sessions opened",
		}),
		PaymentsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lodger_payments_settled_total",
			Help: "Total number of payments settled by outcome",
		}, []string{"outcome"}),
		SessionsReused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lodger_checkout_sessions_reused_total",
			Help: "Total number of pending checkout sessions returned instead of opening new ones",
		}),
	}
}

func (m *Metrics) IncrementInvoiceCreated(category string) {
	m.InvoicesCreated.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementPaymentInitiated() {
	m.PaymentsInitiated.Inc()
}

func (m *Metrics) IncrementPaymentSettled(outcome string) {
	m.PaymentsSettled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSessionReused() {
	m.SessionsReused.Inc()
}
