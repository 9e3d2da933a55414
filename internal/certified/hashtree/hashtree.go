// Package hashtree implements the labeled Merkle hash tree used to certify
// issuer state. Digests are domain-separated SHA-256 so a verifier can
// recompute any root from a pruned witness.
package hashtree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Hash is a 32-byte node digest.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Kind is the node type. Values match the CBOR array tags.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindFork
	KindLabeled
	KindLeaf
	KindPruned
)

const (
	sepEmpty   = "ic-hashtree-empty"
	sepFork    = "ic-hashtree-fork"
	sepLabeled = "ic-hashtree-labeled"
	sepLeaf    = "ic-hashtree-leaf"
)

// Node is one vertex of a hash tree. Nodes are immutable once built.
type Node struct {
	kind   Kind
	left   *Node
	right  *Node
	label  []byte
	value  []byte
	pruned Hash
}

func Empty() *Node { return &Node{kind: KindEmpty} }

func Fork(left, right *Node) *Node {
	return &Node{kind: KindFork, left: left, right: right}
}

// Labeled wraps child under label.
func Labeled(label []byte, child *Node) *Node {
	return &Node{kind: KindLabeled, label: bytes.Clone(label), left: child}
}

func Leaf(value []byte) *Node {
	return &Node{kind: KindLeaf, value: bytes.Clone(value)}
}

// Pruned stands in for a subtree of which only the digest is known.
func Pruned(h Hash) *Node {
	return &Node{kind: KindPruned, pruned: h}
}

func (n *Node) Kind() Kind { return n.kind }

func domainSep(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

// EmptyHash is the digest of the empty tree.
func EmptyHash() Hash {
	return sha256.Sum256(domainSep(sepEmpty))
}

// ForkHash combines two digests in order.
func ForkHash(l, r Hash) Hash {
	h := sha256.New()
	h.Write(domainSep(sepFork))
	h.Write(l[:])
	h.Write(r[:])
	return Hash(h.Sum(nil))
}

// LabeledHash binds a label to a child digest.
func LabeledHash(label []byte, child Hash) Hash {
	h := sha256.New()
	h.Write(domainSep(sepLabeled))
	h.Write(label)
	h.Write(child[:])
	return Hash(h.Sum(nil))
}

// LeafHash is the digest of a leaf value.
func LeafHash(value []byte) Hash {
	h := sha256.New()
	h.Write(domainSep(sepLeaf))
	h.Write(value)
	return Hash(h.Sum(nil))
}

// Digest reconstructs the root digest of the (possibly pruned) tree.
func (n *Node) Digest() Hash {
	switch n.kind {
	case KindFork:
		return ForkHash(n.left.Digest(), n.right.Digest())
	case KindLabeled:
		return LabeledHash(n.label, n.left.Digest())
	case KindLeaf:
		return LeafHash(n.value)
	case KindPruned:
		return n.pruned
	default:
		return EmptyHash()
	}
}

// LookupStatus is the outcome of a path lookup.
type LookupStatus int

const (
	// Absent means the tree proves the path does not exist.
	Absent LookupStatus = iota
	// Found means the path resolves to a leaf.
	Found
	// Unknown means the path falls into a pruned subtree.
	Unknown
)

func (s LookupStatus) String() string {
	switch s {
	case Found:
		return "found"
	case Unknown:
		return "unknown"
	default:
		return "absent"
	}
}

// Lookup follows labels from n and returns the leaf value at the end of path.
func (n *Node) Lookup(path ...[]byte) ([]byte, LookupStatus) {
	sub, status := n.LookupSubtree(path...)
	if status != Found {
		return nil, status
	}
	switch sub.kind {
	case KindLeaf:
		return bytes.Clone(sub.value), Found
	case KindPruned:
		return nil, Unknown
	default:
		return nil, Absent
	}
}

// LookupSubtree follows labels from n and returns the subtree at the end of path.
func (n *Node) LookupSubtree(path ...[]byte) (*Node, LookupStatus) {
	cur := n
	for _, label := range path {
		next, status := cur.findLabel(label)
		if status != Found {
			return nil, status
		}
		cur = next
	}
	return cur, Found
}

// findLabel searches the fork-connected labeled children of n.
func (n *Node) findLabel(label []byte) (*Node, LookupStatus) {
	switch n.kind {
	case KindLabeled:
		if bytes.Equal(n.label, label) {
			return n.left, Found
		}
		return nil, Absent
	case KindFork:
		child, status := n.left.findLabel(label)
		if status == Found {
			return child, Found
		}
		rchild, rstatus := n.right.findLabel(label)
		if rstatus == Found {
			return rchild, Found
		}
		if status == Unknown || rstatus == Unknown {
			return nil, Unknown
		}
		return nil, Absent
	case KindPruned:
		return nil, Unknown
	default:
		return nil, Absent
	}
}

// Errors returned by UnmarshalCBOR.
var (
	ErrMalformed = errors.New("hashtree: malformed encoding")
)

var (
	decMode = func() cbor.DecMode {
		dm, err := cbor.DecOptions{MaxNestedLevels: 512}.DecMode()
		if err != nil {
			panic(err)
		}
		return dm
	}()
	encMode = func() cbor.EncMode {
		em, err := cbor.EncOptions{NilContainers: cbor.NilContainerAsEmpty}.EncMode()
		if err != nil {
			panic(err)
		}
		return em
	}()
)

// Marshal encodes v with the tree's CBOR options. Other certified packages use
// it so certificates and bundles share one encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data with the tree's CBOR options.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// MarshalCBOR encodes the tree as nested arrays [tag, ...].
func (n *Node) MarshalCBOR() ([]byte, error) {
	var parts []any
	switch n.kind {
	case KindEmpty:
		parts = []any{uint8(KindEmpty)}
	case KindFork:
		parts = []any{uint8(KindFork), n.left, n.right}
	case KindLabeled:
		parts = []any{uint8(KindLabeled), n.label, n.left}
	case KindLeaf:
		parts = []any{uint8(KindLeaf), n.value}
	case KindPruned:
		parts = []any{uint8(KindPruned), n.pruned[:]}
	default:
		return nil, fmt.Errorf("hashtree: unknown node kind %d", n.kind)
	}
	return encMode.Marshal(parts)
}

// UnmarshalCBOR decodes the nested array encoding.
func (n *Node) UnmarshalCBOR(data []byte) error {
	var parts []cbor.RawMessage
	if err := decMode.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(parts) == 0 {
		return ErrMalformed
	}
	var tag uint8
	if err := decMode.Unmarshal(parts[0], &tag); err != nil {
		return fmt.Errorf("%w: tag: %v", ErrMalformed, err)
	}

	want := map[Kind]int{KindEmpty: 1, KindFork: 3, KindLabeled: 3, KindLeaf: 2, KindPruned: 2}
	if fields, ok := want[Kind(tag)]; !ok || len(parts) != fields {
		return fmt.Errorf("%w: tag %d with %d fields", ErrMalformed, tag, len(parts))
	}

	*n = Node{kind: Kind(tag)}
	switch Kind(tag) {
	case KindFork:
		n.left, n.right = new(Node), new(Node)
		if err := decMode.Unmarshal(parts[1], n.left); err != nil {
			return err
		}
		return decMode.Unmarshal(parts[2], n.right)
	case KindLabeled:
		n.left = new(Node)
		if err := decMode.Unmarshal(parts[1], &n.label); err != nil {
			return fmt.Errorf("%w: label: %v", ErrMalformed, err)
		}
		return decMode.Unmarshal(parts[2], n.left)
	case KindLeaf:
		if err := decMode.Unmarshal(parts[1], &n.value); err != nil {
			return fmt.Errorf("%w: leaf: %v", ErrMalformed, err)
		}
		if n.value == nil {
			n.value = []byte{}
		}
	case KindPruned:
		var h []byte
		if err := decMode.Unmarshal(parts[1], &h); err != nil || len(h) != len(Hash{}) {
			return fmt.Errorf("%w: pruned digest", ErrMalformed)
		}
		copy(n.pruned[:], h)
	}
	return nil
}
