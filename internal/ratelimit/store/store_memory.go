package store

import (
	"context"
	"sync"
	"time"

	"scorevc/internal/ratelimit/models"
)

// InMemoryStore keeps one sliding window of request timestamps per key.
// It is process-local; multi-replica deployments use RedisStore.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[string][]time.Time)}
}

// Allow records a request for key at now when the window has room.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit models.Limit, now time.Time) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := trim(s.buckets[key], now.Add(-limit.Window))
	if len(window) >= limit.Requests {
		s.buckets[key] = window
		resetAt := now.Add(limit.Window)
		if len(window) > 0 {
			resetAt = window[0].Add(limit.Window)
		}
		return models.Result{
			Limit:      limit.Requests,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}

	window = append(window, now)
	s.buckets[key] = window
	return models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(window),
		ResetAt:   window[0].Add(limit.Window),
	}, nil
}

// Reset forgets every request recorded for key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// trim drops timestamps at or before cutoff. Timestamps are appended in order.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	return ts[i:]
}
