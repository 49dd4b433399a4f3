package service

import (
	billingmetrics "lodger/internal/billing/metrics"
)

type serviceConfig struct {
	tx      StoreTx
	metrics *billingmetrics.Metrics
}

// Option configures the billing services.
type Option func(*serviceConfig)

// WithTx sets the transactional boundary. Defaults to an in-memory lock.
func WithTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

// WithMetrics attaches Prometheus metrics. Nil-safe when omitted.
func WithMetrics(m *billingmetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

func buildConfig(opts []Option) *serviceConfig {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tx == nil {
		cfg.tx = newInMemoryStoreTx()
	}
	return cfg
}
