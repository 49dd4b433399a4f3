package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	dErrors "lodger/pkg/domain-errors"
)

// Fake is an in-memory Processor for tests and local development.
type Fake struct {
	mu       sync.Mutex
	counter  int
	sessions map[string]CheckoutParams
	expired  map[string]bool

	// FailWith, when set, is returned by every call.
	FailWith error
	// SessionTTL controls the expiry stamped on created sessions.
	SessionTTL time.Duration
}

func NewFake() *Fake {
	return &Fake{
		sessions:   make(map[string]CheckoutParams),
		expired:    make(map[string]bool),
		SessionTTL: 24 * time.Hour,
	}
}

func (f *Fake) CreateCheckoutSession(_ context.Context, params CheckoutParams) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.counter++
	sessionID := fmt.Sprintf("cs_test_%03d", f.counter)
	f.sessions[sessionID] = params
	return &CheckoutSession{
		ID:        sessionID,
		URL:       "https://checkout.test/" + sessionID,
		ExpiresAt: time.Now().UTC().Add(f.SessionTTL),
	}, nil
}

func (f *Fake) ExpireSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return f.FailWith
	}
	if _, ok := f.sessions[sessionID]; !ok {
		return dErrors.New(dErrors.CodeExternal, "unknown session")
	}
	f.expired[sessionID] = true
	return nil
}

// CreatedSessions returns how many sessions have been opened.
func (f *Fake) CreatedSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// Expired reports whether the session was expired by a caller.
func (f *Fake) Expired(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired[sessionID]
}
