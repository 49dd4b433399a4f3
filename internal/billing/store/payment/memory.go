package payment

import (
	"context"
	"sort"
	"sync"

	id "lodger/pkg/domain"

	"lodger/internal/billing/models"
	"lodger/internal/sentinel"
)

// ErrNotFound is returned when a payment is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory is a thread-safe in-memory payment store for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
}

func NewInMemory() *InMemory {
	return &InMemory{payments: make(map[id.PaymentID]*models.Payment)}
}

func (s *InMemory) Create(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; exists {
		return sentinel.ErrDuplicate
	}
	if p.ExternalID != "" {
		for _, other := range s.payments {
			if other.ExternalID == p.ExternalID {
				return sentinel.ErrDuplicate
			}
		}
	}
	s.payments[p.ID] = clone(p)
	return nil
}

func (s *InMemory) Update(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ID]; !ok {
		return ErrNotFound
	}
	s.payments[p.ID] = clone(p)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payments[paymentID]; ok {
		return clone(p), nil
	}
	return nil, ErrNotFound
}

// FindByExternalIDForUpdate matches the transactional interface. The
// in-memory store relies on the service's lock for isolation.
func (s *InMemory) FindByExternalIDForUpdate(_ context.Context, externalID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.ExternalID == externalID && externalID != "" {
			return clone(p), nil
		}
	}
	return nil, ErrNotFound
}

// FindPendingByInvoice returns the most recent pending payment for the
// invoice, if any. Backs the session reuse policy.
func (s *InMemory) FindPendingByInvoice(_ context.Context, invoiceID id.InvoiceID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Payment
	for _, p := range s.payments {
		if p.InvoiceID != invoiceID || p.Status != models.PaymentStatusPending {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return clone(latest), nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.UserID) ([]*models.Payment, error) {
	return s.collect(func(p *models.Payment) bool { return p.TenantID == tenantID }), nil
}

func (s *InMemory) ListByLandlord(_ context.Context, landlordID id.UserID) ([]*models.Payment, error) {
	return s.collect(func(p *models.Payment) bool { return p.LandlordID == landlordID }), nil
}

func (s *InMemory) collect(match func(*models.Payment) bool) []*models.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Payment
	for _, p := range s.payments {
		if match(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func clone(p *models.Payment) *models.Payment {
	c := *p
	return &c
}
