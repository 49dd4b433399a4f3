package invoice

import (
	"context"
	"sort"
	"sync"
	"time"

	id "lodger/pkg/domain"

	"lodger/internal/billing/models"
	"lodger/internal/sentinel"
)

// ErrNotFound is returned when an invoice is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory is a thread-safe in-memory invoice store for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	invoices map[id.InvoiceID]*models.Invoice
}

func NewInMemory() *InMemory {
	return &InMemory{invoices: make(map[id.InvoiceID]*models.Invoice)}
}

func (s *InMemory) Create(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoices[inv.ID]; exists {
		return sentinel.ErrDuplicate
	}
	s.invoices[inv.ID] = clone(inv)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv, ok := s.invoices[invoiceID]; ok {
		return clone(inv), nil
	}
	return nil, ErrNotFound
}

// FindByIDForUpdate matches the transactional interface. The in-memory
// store relies on the service's lock for isolation.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	return s.FindByID(ctx, invoiceID)
}

func (s *InMemory) Update(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	s.invoices[inv.ID] = clone(inv)
	return nil
}

func (s *InMemory) Delete(_ context.Context, invoiceID id.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[invoiceID]; !ok {
		return ErrNotFound
	}
	delete(s.invoices, invoiceID)
	return nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.UserID) ([]*models.Invoice, error) {
	return s.collect(func(inv *models.Invoice) bool { return inv.TenantID == tenantID }), nil
}

func (s *InMemory) ListByLandlord(_ context.Context, landlordID id.UserID) ([]*models.Invoice, error) {
	return s.collect(func(inv *models.Invoice) bool { return inv.LandlordID == landlordID }), nil
}

func (s *InMemory) ListAll(_ context.Context) ([]*models.Invoice, error) {
	return s.collect(func(*models.Invoice) bool { return true }), nil
}

// FindRentForPeriod returns the rent invoice already issued to this tenant
// for this property and due date, if any. Backs recurring idempotency.
func (s *InMemory) FindRentForPeriod(_ context.Context, tenantID id.UserID, propertyID id.PropertyID, dueDate time.Time) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.TenantID == tenantID && inv.PropertyID == propertyID &&
			inv.Category == models.CategoryRent && inv.DueDate.Equal(dueDate) &&
			inv.Status != models.InvoiceStatusCancelled {
			return clone(inv), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) collect(match func(*models.Invoice) bool) []*models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invoice
	for _, inv := range s.invoices {
		if match(inv) {
			out = append(out, clone(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func clone(inv *models.Invoice) *models.Invoice {
	c := *inv
	return &c
}
