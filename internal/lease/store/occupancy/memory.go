package occupancy

import (
	"context"
	"sort"
	"sync"

	id "lodger/pkg/domain"

	"lodger/internal/lease/models"
	"lodger/internal/sentinel"
)

// ErrNotFound is returned when an occupancy is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory stores occupancies in memory for tests and the demo environment.
type InMemory struct {
	mu          sync.RWMutex
	occupancies map[id.OccupancyID]*models.Occupancy
}

// NewInMemory creates an in-memory occupancy store.
func NewInMemory() *InMemory {
	return &InMemory{occupancies: make(map[id.OccupancyID]*models.Occupancy)}
}

func (s *InMemory) Create(_ context.Context, o *models.Occupancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.occupancies[o.ID]; exists {
		return sentinel.ErrDuplicate
	}
	clone := *o
	s.occupancies[o.ID] = &clone
	return nil
}

func (s *InMemory) Update(_ context.Context, o *models.Occupancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occupancies[o.ID]; !ok {
		return ErrNotFound
	}
	clone := *o
	s.occupancies[o.ID] = &clone
	return nil
}

func (s *InMemory) Delete(_ context.Context, occupancyID id.OccupancyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occupancies[occupancyID]; !ok {
		return ErrNotFound
	}
	delete(s.occupancies, occupancyID)
	return nil
}

// FindByTenantAndUnit returns the most recent occupancy row for the
// (tenant, property, unit) triple, or ErrNotFound.
func (s *InMemory) FindByTenantAndUnit(_ context.Context, tenantID id.UserID, propertyID id.PropertyID, unitID *id.UnitID) (*models.Occupancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := s.collect(func(o *models.Occupancy) bool {
		return o.TenantID == tenantID && o.PropertyID == propertyID && sameUnit(o.UnitID, unitID)
	})
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

// FindCurrent returns the most recent pending or active occupancy for the
// tenant at the property, regardless of unit.
func (s *InMemory) FindCurrent(_ context.Context, tenantID id.UserID, propertyID id.PropertyID) (*models.Occupancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := s.collect(func(o *models.Occupancy) bool {
		return o.TenantID == tenantID && o.PropertyID == propertyID && o.Occupying()
	})
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

func (s *InMemory) collect(match func(*models.Occupancy) bool) []*models.Occupancy {
	var out []*models.Occupancy
	for _, o := range s.occupancies {
		if match(o) {
			clone := *o
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func sameUnit(a, b *id.UnitID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
