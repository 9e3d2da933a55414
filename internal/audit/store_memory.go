package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps events in process, ordered by arrival.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByPrincipal returns events recorded for the given principal text.
func (s *InMemoryStore) ListByPrincipal(_ context.Context, principal string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.Principal == principal {
			out = append(out, e)
		}
	}
	return out
}

// ListRecent returns the most recent limit events, oldest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.events)-limit, 0)
	return append([]Event{}, s.events[start:]...)
}
