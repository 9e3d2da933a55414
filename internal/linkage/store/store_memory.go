// Package store persists principal/address links. Every backend implements
// the same atomic check-then-write: a link succeeds only when neither side is
// bound elsewhere, and re-linking the same pair refreshes the score.
package store

import (
	"context"
	"sync"
	"time"

	"scorevc/internal/eth"
	"scorevc/internal/linkage/models"
	"scorevc/pkg/domain"
	"scorevc/pkg/platform/sentinel"
)

// InMemoryStore keeps links in two maps guarded by one lock.
type InMemoryStore struct {
	mu          sync.RWMutex
	byPrincipal map[domain.Principal]models.Link
	byAddress   map[eth.AddressHash]domain.Principal
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byPrincipal: make(map[domain.Principal]models.Link),
		byAddress:   make(map[eth.AddressHash]domain.Principal),
	}
}

// Link binds principal to addressHash with score. It returns
// sentinel.ErrConflict when either side is bound to something else.
func (s *InMemoryStore) Link(_ context.Context, principal domain.Principal, addressHash eth.AddressHash, score float64, now time.Time) (*models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, principalLinked := s.byPrincipal[principal]
	owner, addressLinked := s.byAddress[addressHash]

	switch {
	case principalLinked && addressLinked:
		if !owner.Equal(principal) || existing.AddressHash != addressHash {
			return nil, sentinel.ErrConflict
		}
		existing.Score = score
		existing.UpdatedAt = now
		s.byPrincipal[principal] = existing
		return &existing, nil
	case principalLinked || addressLinked:
		return nil, sentinel.ErrConflict
	}

	link := models.Link{
		Principal:   principal,
		AddressHash: addressHash,
		Score:       score,
		LinkedAt:    now,
		UpdatedAt:   now,
	}
	s.byPrincipal[principal] = link
	s.byAddress[addressHash] = principal
	return &link, nil
}

// Get returns the principal's link or sentinel.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, principal domain.Principal) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.byPrincipal[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &link, nil
}

// Score returns the principal's cached score or sentinel.ErrNotFound.
func (s *InMemoryStore) Score(ctx context.Context, principal domain.Principal) (float64, error) {
	link, err := s.Get(ctx, principal)
	if err != nil {
		return 0, err
	}
	return link.Score, nil
}

// PrincipalByAddress returns the owner of addressHash or sentinel.ErrNotFound.
func (s *InMemoryStore) PrincipalByAddress(_ context.Context, addressHash eth.AddressHash) (domain.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.byAddress[addressHash]
	if !ok {
		return domain.Principal{}, sentinel.ErrNotFound
	}
	return owner, nil
}
