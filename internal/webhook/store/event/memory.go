package event

import (
	"context"
	"sync"
	"time"

	"lodger/internal/sentinel"
	"lodger/internal/webhook/models"
)

// ErrNotFound is returned when an event is not found.
var ErrNotFound = sentinel.ErrNotFound

// InMemory is a thread-safe in-memory event store for tests and local runs.
type InMemory struct {
	mu     sync.Mutex
	events map[string]*models.ProcessedEvent
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[string]*models.ProcessedEvent)}
}

// Record inserts the event, failing with ErrDuplicate when the event id
// has been seen before. The check and insert are atomic.
func (s *InMemory) Record(_ context.Context, evt *models.ProcessedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.events[evt.EventID]; seen {
		return sentinel.ErrDuplicate
	}
	c := *evt
	s.events[evt.EventID] = &c
	return nil
}

// MarkProcessed stamps the event after its handler ran.
func (s *InMemory) MarkProcessed(_ context.Context, eventID string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}
	evt.ProcessedAt = &processedAt
	return nil
}

// Find returns the recorded event.
func (s *InMemory) Find(_ context.Context, eventID string) (*models.ProcessedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evt, ok := s.events[eventID]; ok {
		c := *evt
		return &c, nil
	}
	return nil, ErrNotFound
}
