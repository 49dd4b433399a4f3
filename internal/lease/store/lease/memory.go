package lease

import (
	"context"
	"sort"
	"sync"
	"time"

	id "lodger/pkg/domain"

	"lodger/internal/lease/models"
	"lodger/internal/sentinel"
)

// ErrNotFound is returned when a lease is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory stores leases in memory for tests and the demo environment.
type InMemory struct {
	mu     sync.RWMutex
	leases map[id.LeaseID]*models.Lease
}

// NewInMemory creates an in-memory lease store.
func NewInMemory() *InMemory {
	return &InMemory{leases: make(map[id.LeaseID]*models.Lease)}
}

func (s *InMemory) Create(_ context.Context, l *models.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leases[l.ID]; exists {
		return sentinel.ErrDuplicate
	}
	clone := *l
	s.leases[l.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leases[leaseID]; ok {
		clone := *l
		return &clone, nil
	}
	return nil, ErrNotFound
}

// FindByIDForUpdate matches the Postgres store's locking read. The in-memory
// transaction already serializes mutations, so this is a plain read.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, leaseID id.LeaseID) (*models.Lease, error) {
	return s.FindByID(ctx, leaseID)
}

func (s *InMemory) Update(_ context.Context, l *models.Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leases[l.ID]; !ok {
		return ErrNotFound
	}
	clone := *l
	s.leases[l.ID] = &clone
	return nil
}

func (s *InMemory) Delete(_ context.Context, leaseID id.LeaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leases[leaseID]; !ok {
		return ErrNotFound
	}
	delete(s.leases, leaseID)
	return nil
}

// FindActiveForUnit returns the active lease covering the given property/unit,
// or ErrNotFound when the unit is free.
func (s *InMemory) FindActiveForUnit(_ context.Context, propertyID id.PropertyID, unitID *id.UnitID) (*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leases {
		if l.PropertyID == propertyID && l.IsActive() && l.SameUnit(unitID) {
			clone := *l
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemory) ListByLandlord(_ context.Context, landlordID id.UserID) ([]*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(l *models.Lease) bool { return l.LandlordID == landlordID }), nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.UserID) ([]*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(l *models.Lease) bool { return l.TenantID == tenantID }), nil
}

func (s *InMemory) ListActiveByLandlord(_ context.Context, landlordID id.UserID) ([]*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(l *models.Lease) bool {
		return l.LandlordID == landlordID && l.IsActive()
	}), nil
}

func (s *InMemory) ListActiveEndingBefore(_ context.Context, cutoff time.Time) ([]*models.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(l *models.Lease) bool {
		return l.IsActive() && l.EndDate.Before(cutoff)
	}), nil
}

func (s *InMemory) CountForTenantProperty(_ context.Context, tenantID id.UserID, propertyID id.PropertyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, l := range s.leases {
		if l.TenantID == tenantID && l.PropertyID == propertyID {
			count++
		}
	}
	return count, nil
}

// collect returns clones matching the predicate, newest first. Caller holds the lock.
func (s *InMemory) collect(match func(*models.Lease) bool) []*models.Lease {
	var out []*models.Lease
	for _, l := range s.leases {
		if match(l) {
			clone := *l
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
