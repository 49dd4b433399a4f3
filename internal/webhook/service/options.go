package service

import (
	webhookmetrics "lodger/internal/webhook/metrics"
)

type serviceConfig struct {
	tx      StoreTx
	metrics *webhookmetrics.Metrics
}

// Option configures the reconciler.
type Option func(*serviceConfig)

// WithTx sets the transactional boundary. Defaults to an in-memory lock.
func WithTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

// WithMetrics attaches Prometheus metrics. Nil-safe when omitted.
func WithMetrics(m *webhookmetrics.Metrics) Option {
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
