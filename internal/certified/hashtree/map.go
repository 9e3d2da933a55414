package hashtree

import (
	"bytes"
	"sort"
)

// Map is a set of labeled subtrees arranged into a deterministic, balanced
// fork tree ordered by label. The resulting digest does not depend on
// insertion order. Map is not safe for concurrent use.
type Map struct {
	entries map[string]*Node
}

func NewMap() *Map {
	return &Map{entries: make(map[string]*Node)}
}

// Insert sets the subtree under label, replacing any previous one.
func (m *Map) Insert(label []byte, child *Node) {
	m.entries[string(label)] = child
}

func (m *Map) Delete(label []byte) {
	delete(m.entries, string(label))
}

func (m *Map) Get(label []byte) (*Node, bool) {
	n, ok := m.entries[string(label)]
	return n, ok
}

func (m *Map) Len() int {
	return len(m.entries)
}

// Labels returns the labels in tree order.
func (m *Map) Labels() [][]byte {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

// Tree builds the full tree.
func (m *Map) Tree() *Node {
	return m.build(m.Labels(), nil, nil)
}

// Digest is Tree().Digest().
func (m *Map) Digest() Hash {
	return m.Tree().Digest()
}

// Witness builds a tree with the same digest in which only the path to label
// is revealed. When child is non-nil it replaces the revealed subtree and must
// have the same digest (typically a witness of the nested map). Returns nil
// when label is not present.
func (m *Map) Witness(label []byte, child *Node) *Node {
	if _, ok := m.entries[string(label)]; !ok {
		return nil
	}
	if child == nil {
		child = m.entries[string(label)]
	}
	return m.build(m.Labels(), label, child)
}

// build arranges labels[...] into a balanced fork tree. When target is set,
// every branch that does not contain it is pruned to its digest.
func (m *Map) build(labels [][]byte, target []byte, reveal *Node) *Node {
	switch len(labels) {
	case 0:
		return Empty()
	case 1:
		l := labels[0]
		if target != nil && !bytes.Equal(l, target) {
			return Pruned(LabeledHash(l, m.entries[string(l)].Digest()))
		}
		child := m.entries[string(l)]
		if target != nil {
			child = reveal
		}
		return Labeled(l, child)
	}

	mid := len(labels) / 2
	left, right := labels[:mid], labels[mid:]
	if target == nil {
		return Fork(m.build(left, nil, nil), m.build(right, nil, nil))
	}
	if bytes.Compare(target, right[0]) < 0 {
		return Fork(m.build(left, target, reveal), Pruned(m.build(right, nil, nil).Digest()))
	}
	return Fork(Pruned(m.build(left, nil, nil).Digest()), m.build(right, target, reveal))
}
