// Package circuit provides a circuit breaker for outbound calls.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and calls flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and calls fail fast.
	StateOpen
)

// Breaker tracks consecutive failures on an outbound dependency. After
// FailureThreshold consecutive failures the circuit opens and Allow
// returns false until the cooldown elapses; the first call after the
// cooldown probes the dependency and closes the circuit on success.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failureCount     int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	now              func() time.Time
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open
// the circuit. Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before a probe call
// is allowed through. Default is 30 seconds.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. While open, only the probe
// call after the cooldown is allowed through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		// Probe: push the window forward so concurrent callers
		// do not all rush the recovering dependency.
		b.openedAt = b.now()
		return true
	}
	return false
}

// RecordFailure records a failed call. Returns true if the circuit just
// opened on this failure.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	if b.state == StateOpen {
		b.openedAt = b.now()
		return false
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// RecordSuccess records a successful call, closing the circuit if it was
// open. Returns true if the circuit just closed.
func (b *Breaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	if b.state == StateOpen {
		b.state = StateClosed
		return true
	}
	return false
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
