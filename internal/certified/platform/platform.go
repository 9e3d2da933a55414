// Package platform stands in for the hosting platform's certification
// primitive: it accepts one 32-byte root per issuer and returns a certificate
// signed by the platform's root-of-trust key.
package platform

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"scorevc/internal/certified/hashtree"
	"scorevc/pkg/domain"
)

const stateRootDomain = "ic-state-root"

// Certificate tree labels.
var (
	labelCanister      = []byte("canister")
	labelCertifiedData = []byte("certified_data")
	labelTime          = []byte("time")
)

// Verification errors.
var (
	ErrBadCertificate  = errors.New("certificate: malformed")
	ErrBadSignature    = errors.New("certificate: signature does not verify")
	ErrNoCertifiedData = errors.New("certificate: no certified data for issuer")
)

// Certificate is the CBOR-encoded proof the platform hands out.
type Certificate struct {
	Tree      *hashtree.Node `cbor:"tree"`
	Signature []byte         `cbor:"signature"`
}

// Option configures a Platform.
type Option func(*Platform)

// WithClock overrides the certification timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Platform) { p.now = now }
}

// Platform certifies the issuer's data. Safe for concurrent use.
type Platform struct {
	mu       sync.RWMutex
	issuerID domain.Principal
	key      ed25519.PrivateKey
	now      func() time.Time
	data     hashtree.Hash
	cert     []byte
}

// New derives the root-of-trust key from a 32-byte seed.
func New(issuerID domain.Principal, rootKeySeed []byte, opts ...Option) (*Platform, error) {
	if len(rootKeySeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root key seed must be %d bytes", ed25519.SeedSize)
	}
	p := &Platform{
		issuerID: issuerID,
		key:      ed25519.NewKeyFromSeed(rootKeySeed),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RootPublicKey is the key verifiers must trust.
func (p *Platform) RootPublicKey() ed25519.PublicKey {
	return p.key.Public().(ed25519.PublicKey)
}

// IssuerID returns the principal the data is certified for.
func (p *Platform) IssuerID() domain.Principal {
	return p.issuerID
}

// SetCertifiedData publishes root and issues a fresh certificate for it.
func (p *Platform) SetCertifiedData(root hashtree.Hash) error {
	tree := hashtree.Fork(
		hashtree.Labeled(labelCanister,
			hashtree.Labeled(p.issuerID.Bytes(),
				hashtree.Labeled(labelCertifiedData, hashtree.Leaf(root[:])))),
		hashtree.Labeled(labelTime, hashtree.Leaf(binary.AppendUvarint(nil, uint64(p.now().UnixNano())))),
	)
	digest := tree.Digest()
	cert, err := hashtree.Marshal(Certificate{
		Tree:      tree,
		Signature: ed25519.Sign(p.key, signedMessage(digest)),
	})
	if err != nil {
		return fmt.Errorf("encode certificate: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = root
	p.cert = cert
	return nil
}

// CertifiedData returns the last published root.
func (p *Platform) CertifiedData() hashtree.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// Certificate returns the certificate over the last published root, or nil
// before the first publication.
func (p *Platform) Certificate() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return bytes.Clone(p.cert)
}

func signedMessage(digest hashtree.Hash) []byte {
	msg := make([]byte, 0, 1+len(stateRootDomain)+len(digest))
	msg = append(msg, byte(len(stateRootDomain)))
	msg = append(msg, stateRootDomain...)
	return append(msg, digest[:]...)
}

// VerifyCertificate checks cert against rootKey and returns the data certified
// for issuerID together with the certification time.
func VerifyCertificate(cert []byte, rootKey ed25519.PublicKey, issuerID domain.Principal) (hashtree.Hash, time.Time, error) {
	var c Certificate
	if err := hashtree.Unmarshal(cert, &c); err != nil {
		return hashtree.Hash{}, time.Time{}, fmt.Errorf("%w: %v", ErrBadCertificate, err)
	}
	if c.Tree == nil {
		return hashtree.Hash{}, time.Time{}, ErrBadCertificate
	}
	if len(rootKey) != ed25519.PublicKeySize || !ed25519.Verify(rootKey, signedMessage(c.Tree.Digest()), c.Signature) {
		return hashtree.Hash{}, time.Time{}, ErrBadSignature
	}

	data, status := c.Tree.Lookup(labelCanister, issuerID.Bytes(), labelCertifiedData)
	if status != hashtree.Found || len(data) != len(hashtree.Hash{}) {
		return hashtree.Hash{}, time.Time{}, ErrNoCertifiedData
	}

	var certifiedAt time.Time
	if raw, status := c.Tree.Lookup(labelTime); status == hashtree.Found {
		if ns, n := binary.Uvarint(raw); n > 0 {
			certifiedAt = time.Unix(0, int64(ns))
		}
	}
	return hashtree.Hash(data), certifiedAt, nil
}
