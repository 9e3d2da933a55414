// Package assets keeps the certified set of static files served next to the
// issuer API. Only the digest of the set takes part in certification.
package assets

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"scorevc/internal/certified/hashtree"
)

// Label is the state-tree label of the asset subtree.
const Label = "http_assets"

// Assets is safe for concurrent use. Mutations change RootHash; the owner
// must recertify after Certify.
type Assets struct {
	mu    sync.RWMutex
	files map[string][]byte
	tree  *hashtree.Map
}

func New() *Assets {
	return &Assets{files: make(map[string][]byte), tree: hashtree.NewMap()}
}

// Certify replaces the whole asset set. Paths are normalized to a leading "/".
func (a *Assets) Certify(files map[string][]byte) {
	tree := hashtree.NewMap()
	normalized := make(map[string][]byte, len(files))
	for p, body := range files {
		p = normalize(p)
		normalized[p] = bytes.Clone(body)
		sum := sha256.Sum256(body)
		tree.Insert([]byte(p), hashtree.Leaf(sum[:]))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = normalized
	a.tree = tree
}

// Snapshot is the asset set at one point in time.
type Snapshot struct {
	files map[string][]byte
	tree  *hashtree.Map
}

// Snapshot captures the current set. Certify swaps whole values, so the
// captured map and tree are never mutated afterwards.
func (a *Assets) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{files: a.files, tree: a.tree}
}

// Restore reinstates a captured set.
func (a *Assets) Restore(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = snap.files
	a.tree = snap.tree
}

// RootHash is labeled("http_assets", map of path to leaf(sha256(body))).
func (a *Assets) RootHash() hashtree.Hash {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return hashtree.LabeledHash([]byte(Label), a.tree.Digest())
}

// Get returns the body stored at path.
func (a *Assets) Get(p string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	body, ok := a.files[normalize(p)]
	return body, ok
}

// Paths lists stored paths in sorted order.
func (a *Assets) Paths() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.files))
	for p := range a.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LoadDir reads every regular file under dir, keyed by its slash path
// relative to dir.
func LoadDir(dir string) (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[normalize(filepath.ToSlash(rel))] = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load assets from %s: %w", dir, err)
	}
	return files, nil
}

func normalize(p string) string {
	return path.Clean("/" + p)
}
