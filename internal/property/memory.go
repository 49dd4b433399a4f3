package property

import (
	"context"
	"sync"

	id "lodger/pkg/domain"

	"lodger/internal/sentinel"
)

// InMemory stores properties in memory for tests and the demo environment.
type InMemory struct {
	mu         sync.RWMutex
	properties map[id.PropertyID]*Property
}

// NewInMemory creates an in-memory property store.
func NewInMemory() *InMemory {
	return &InMemory{properties: make(map[id.PropertyID]*Property)}
}

func (s *InMemory) Create(_ context.Context, p *Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.properties[p.ID]; exists {
		return sentinel.ErrDuplicate
	}
	clone := *p
	s.properties[p.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, propertyID id.PropertyID) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.properties[propertyID]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}
