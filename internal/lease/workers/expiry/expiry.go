// Package expiry runs the periodic sweep that expires active leases
// whose end date has passed.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LeaseService exposes the expiry sweep.
type LeaseService interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically expires overdue leases.
type Sweeper struct {
	leases   LeaseService
	interval time.Duration
	logger   *slog.Logger
}

// Option configures the Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for sweep errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Sweeper with the required service and options applied.
func New(leases LeaseService, opts ...Option) (*Sweeper, error) {
	if leases == nil {
		return nil, fmt.Errorf("leases service is required")
	}
	s := &Sweeper{
		leases:   leases,
		interval: time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "lease expiry sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep and returns the number of leases expired.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	expired, err := s.leases.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire due leases: %w", err)
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expired leases", "count", expired)
	}
	return expired, nil
}
