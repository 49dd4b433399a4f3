package service

import (
	"time"

	leasemetrics "lodger/internal/lease/metrics"
)

type serviceConfig struct {
	tx             StoreTx
	metrics        *leasemetrics.Metrics
	renewalHorizon time.Duration
}

// Option configures the lease service.
type Option func(*serviceConfig)

// WithTx sets the transactional boundary. Defaults to an in-memory lock.
func WithTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

// WithMetrics attaches Prometheus metrics. Nil-safe when omitted.
func WithMetrics(m *leasemetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithRenewalHorizon overrides how far before its end date an active lease
// becomes renewable. Defaults to 30 days.
func WithRenewalHorizon(horizon time.Duration) Option {
	return func(cfg *serviceConfig) {
		if horizon > 0 {
			cfg.renewalHorizon = horizon
		}
	}
}
