// Package state owns the certified root: the fork of the asset subtree and
// the labeled signature subtree. Every mutation republishes the root before
// the lock is released, so no caller can observe uncertified state.
package state

import (
	"fmt"
	"sync"
	"time"

	"scorevc/internal/certified/assets"
	"scorevc/internal/certified/hashtree"
	"scorevc/internal/certified/sigmap"
)

// Publisher is the platform's certification primitive.
type Publisher interface {
	SetCertifiedData(root hashtree.Hash) error
	Certificate() []byte
}

// Tree serializes all writes to assets and signatures under one lock.
type Tree struct {
	mu       sync.RWMutex
	assets   *assets.Assets
	sigs     *sigmap.Map
	platform Publisher
}

// New builds the tree and publishes its initial root.
func New(a *assets.Assets, s *sigmap.Map, p Publisher) (*Tree, error) {
	t := &Tree{assets: a, sigs: s, platform: p}
	if err := t.RecomputeAndPublish(); err != nil {
		return nil, err
	}
	return t, nil
}

// RootHash computes fork(assets, labeled("sig", signatures)).
func (t *Tree) RootHash() hashtree.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootLocked()
}

func (t *Tree) rootLocked() hashtree.Hash {
	// Labels in lexicographic order: "http_assets" < "sig".
	return hashtree.ForkHash(t.assets.RootHash(), hashtree.LabeledHash([]byte(sigmap.Label), t.sigs.RootHash()))
}

// RecomputeAndPublish recomputes the root and hands it to the platform.
func (t *Tree) RecomputeAndPublish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.publishLocked()
}

func (t *Tree) publishLocked() error {
	if err := t.platform.SetCertifiedData(t.rootLocked()); err != nil {
		return fmt.Errorf("publish certified root: %w", err)
	}
	return nil
}

// AddSignature registers a pending signature and recertifies. If publication
// fails the signature map is restored, pruned entries included, so the
// in-memory root stays equal to the last published one.
func (t *Tree) AddSignature(seed []byte, msgHash hashtree.Hash, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.sigs.Snapshot()
	t.sigs.Add(seed, msgHash, now)
	if err := t.publishLocked(); err != nil {
		t.sigs.Restore(snap)
		return err
	}
	return nil
}

// CertifyAssets replaces the asset set and recertifies, restoring the
// previous set when publication fails.
func (t *Tree) CertifyAssets(files map[string][]byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.assets.Snapshot()
	t.assets.Certify(files)
	if err := t.publishLocked(); err != nil {
		t.assets.Restore(snap)
		return err
	}
	return nil
}

// Signature returns the bundle for a pending pair. Certificate and witness
// are read under the same lock so they describe the same root.
func (t *Tree) Signature(seed []byte, msgHash hashtree.Hash, now time.Time) (sigmap.Bundle, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sigs.Get(seed, msgHash, t.assets.RootHash(), t.platform.Certificate(), now)
}

// Certificate returns the platform certificate over the current root.
func (t *Tree) Certificate() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.platform.Certificate()
}

// PendingSignatures is the number of stored signature pairs.
func (t *Tree) PendingSignatures() int {
	return t.sigs.Len()
}

// Asset returns a certified static file.
func (t *Tree) Asset(path string) ([]byte, bool) {
	return t.assets.Get(path)
}
