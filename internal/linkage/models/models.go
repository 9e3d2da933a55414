// Package models holds the linkage records shared by the stores and service.
package models

import (
	"time"

	"scorevc/internal/eth"
	"scorevc/pkg/domain"
)

// Link binds one principal to one external address and caches its score.
// The address itself is never stored; only its keccak hash.
type Link struct {
	Principal   domain.Principal
	AddressHash eth.AddressHash
	Score       float64
	LinkedAt    time.Time
	UpdatedAt   time.Time
}

// Matches reports whether the link binds exactly this pair.
func (l *Link) Matches(principal domain.Principal, addressHash eth.AddressHash) bool {
	return l != nil && l.Principal.Equal(principal) && l.AddressHash == addressHash
}

// ScoreResult is what link, refresh and lookup return to callers.
type ScoreResult struct {
	Score     float64
	UpdatedAt time.Time
}
