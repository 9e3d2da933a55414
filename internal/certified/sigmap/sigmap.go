// Package sigmap holds pending canister signatures: (seed, message hash)
// pairs whose presence in the certified tree is the signature itself.
package sigmap

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"scorevc/internal/certified/hashtree"
	"scorevc/pkg/platform/sentinel"
)

// Label is the state-tree label under which the map's root is certified.
const Label = "sig"

// DefaultMaxPrune bounds how many expired entries one Add removes.
const DefaultMaxPrune = 50

type key struct {
	seedHash hashtree.Hash
	msgHash  hashtree.Hash
}

type queued struct {
	key
	expiresAt time.Time
}

// Map is safe for concurrent use. Mutations change RootHash; the owner must
// recertify after every Add, Delete or PruneExpired.
type Map struct {
	mu       sync.RWMutex
	validity time.Duration
	maxPrune int
	expiry   map[key]time.Time
	seeds    map[hashtree.Hash]*hashtree.Map
	tree     *hashtree.Map
	// queue holds entries in insertion order, which is expiry order for a
	// fixed validity and a monotonic clock.
	queue []queued
}

// Option configures a Map.
type Option func(*Map)

// WithMaxPrune overrides DefaultMaxPrune.
func WithMaxPrune(n int) Option {
	return func(m *Map) { m.maxPrune = n }
}

// New creates a map whose entries stay retrievable for validity after Add.
func New(validity time.Duration, opts ...Option) *Map {
	m := &Map{
		validity: validity,
		maxPrune: DefaultMaxPrune,
		expiry:   make(map[key]time.Time),
		seeds:    make(map[hashtree.Hash]*hashtree.Map),
		tree:     hashtree.NewMap(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SeedHash is the label a seed is stored under.
func SeedHash(seed []byte) hashtree.Hash {
	return sha256.Sum256(seed)
}

// Add registers msgHash under seed, expiring validity after now. Re-adding an
// existing pair extends its expiry. Up to the configured bound of already
// expired entries are pruned first.
func (m *Map) Add(seed []byte, msgHash hashtree.Hash, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked(now, m.maxPrune)

	k := key{seedHash: SeedHash(seed), msgHash: msgHash}
	expiresAt := now.Add(m.validity)
	m.expiry[k] = expiresAt
	m.queue = append(m.queue, queued{key: k, expiresAt: expiresAt})

	inner, ok := m.seeds[k.seedHash]
	if !ok {
		inner = hashtree.NewMap()
		m.seeds[k.seedHash] = inner
	}
	inner.Insert(k.msgHash[:], hashtree.Leaf(nil))
	m.tree.Insert(k.seedHash[:], inner.Tree())
}

// Delete removes a pair. Missing pairs are ignored.
func (m *Map) Delete(seed []byte, msgHash hashtree.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key{seedHash: SeedHash(seed), msgHash: msgHash})
}

// PruneExpired removes at most limit entries that expired at or before now and
// returns how many were removed.
func (m *Map) PruneExpired(now time.Time, limit int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(now, limit)
}

// RootHash is the digest of all entries, expired or not.
func (m *Map) RootHash() hashtree.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Digest()
}

// Len returns the number of stored pairs.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.expiry)
}

// Witness returns a pruned tree, digest-equal to RootHash, revealing only the
// requested pair. It fails with sentinel.ErrNotFound for unknown pairs and
// sentinel.ErrExpired once the validity window has passed.
func (m *Map) Witness(seed []byte, msgHash hashtree.Hash, now time.Time) (*hashtree.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := key{seedHash: SeedHash(seed), msgHash: msgHash}
	expiresAt, ok := m.expiry[k]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !now.Before(expiresAt) {
		return nil, sentinel.ErrExpired
	}

	inner := m.seeds[k.seedHash]
	return m.tree.Witness(k.seedHash[:], inner.Witness(k.msgHash[:], nil)), nil
}

// Get assembles the transport bundle for a pair. assetsRoot is the digest of
// the sibling subtree in the certified state; cert is the platform
// certificate over the current root.
func (m *Map) Get(seed []byte, msgHash hashtree.Hash, assetsRoot hashtree.Hash, cert []byte, now time.Time) (Bundle, error) {
	witness, err := m.Witness(seed, msgHash, now)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Certificate: cert,
		Tree:        hashtree.Fork(hashtree.Pruned(assetsRoot), hashtree.Labeled([]byte(Label), witness)),
	}, nil
}

// Snapshot is a point-in-time copy of a Map's entries.
type Snapshot struct {
	expiry map[key]time.Time
	queue  []queued
}

// Snapshot copies the current entries so a failed recertification can undo
// an Add, including the pruning it did.
func (m *Map) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expiry := make(map[key]time.Time, len(m.expiry))
	for k, v := range m.expiry {
		expiry[k] = v
	}
	return Snapshot{expiry: expiry, queue: append([]queued(nil), m.queue...)}
}

// Restore replaces the entries with snap and rebuilds the tree.
func (m *Map) Restore(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expiry = make(map[key]time.Time, len(snap.expiry))
	m.seeds = make(map[hashtree.Hash]*hashtree.Map)
	m.tree = hashtree.NewMap()
	m.queue = append([]queued(nil), snap.queue...)
	for k, v := range snap.expiry {
		m.expiry[k] = v
		inner, ok := m.seeds[k.seedHash]
		if !ok {
			inner = hashtree.NewMap()
			m.seeds[k.seedHash] = inner
		}
		inner.Insert(k.msgHash[:], hashtree.Leaf(nil))
	}
	for seedHash, inner := range m.seeds {
		m.tree.Insert(seedHash[:], inner.Tree())
	}
}

func (m *Map) deleteLocked(k key) {
	if _, ok := m.expiry[k]; !ok {
		return
	}
	delete(m.expiry, k)
	inner := m.seeds[k.seedHash]
	inner.Delete(k.msgHash[:])
	if inner.Len() == 0 {
		delete(m.seeds, k.seedHash)
		m.tree.Delete(k.seedHash[:])
		return
	}
	m.tree.Insert(k.seedHash[:], inner.Tree())
}

func (m *Map) pruneLocked(now time.Time, limit int) int {
	removed := 0
	for len(m.queue) > 0 && removed < limit {
		head := m.queue[0]
		if now.Before(head.expiresAt) {
			break
		}
		m.queue = m.queue[1:]
		// A re-add leaves a stale queue entry behind; only the latest expiry counts.
		if current, ok := m.expiry[head.key]; ok && !current.After(head.expiresAt) {
			m.deleteLocked(head.key)
			removed++
		}
	}
	return removed
}

// Bundle is the signature value handed to credential holders: the platform
// certificate plus a witness of the certified state revealing the signed pair.
type Bundle struct {
	Certificate []byte         `cbor:"certificate"`
	Tree        *hashtree.Node `cbor:"tree"`
}

// Marshal encodes the bundle as CBOR.
func (b Bundle) Marshal() ([]byte, error) {
	return hashtree.Marshal(b)
}

// ParseBundle decodes a CBOR bundle.
func ParseBundle(data []byte) (Bundle, error) {
	var b Bundle
	if err := hashtree.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode signature bundle: %w", err)
	}
	if b.Tree == nil || len(b.Certificate) == 0 {
		return Bundle{}, fmt.Errorf("decode signature bundle: missing fields")
	}
	return b, nil
}
