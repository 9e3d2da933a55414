package platform

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorevc/internal/certified/hashtree"
	"scorevc/pkg/domain"
)

var (
	issuer = domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	seed   = bytes.Repeat([]byte{7}, 32)
)

func TestNew_RejectsShortSeed(t *testing.T) {
	_, err := New(issuer, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSetCertifiedData_Verifies(t *testing.T) {
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	p, err := New(issuer, seed, WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	assert.Nil(t, p.Certificate())

	root := hashtree.LeafHash([]byte("state"))
	require.NoError(t, p.SetCertifiedData(root))
	assert.Equal(t, root, p.CertifiedData())

	data, certifiedAt, err := VerifyCertificate(p.Certificate(), p.RootPublicKey(), issuer)
	require.NoError(t, err)
	assert.Equal(t, root, data)
	assert.True(t, at.Equal(certifiedAt))
}

func TestVerifyCertificate_WrongKey(t *testing.T) {
	p, err := New(issuer, seed)
	require.NoError(t, err)
	require.NoError(t, p.SetCertifiedData(hashtree.EmptyHash()))

	otherKey := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, 32)).Public().(ed25519.PublicKey)
	_, _, err = VerifyCertificate(p.Certificate(), otherKey, issuer)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyCertificate_WrongIssuer(t *testing.T) {
	p, err := New(issuer, seed)
	require.NoError(t, err)
	require.NoError(t, p.SetCertifiedData(hashtree.EmptyHash()))

	_, _, err = VerifyCertificate(p.Certificate(), p.RootPublicKey(), domain.AnonymousPrincipal)
	assert.ErrorIs(t, err, ErrNoCertifiedData)
}

func TestVerifyCertificate_Tampered(t *testing.T) {
	p, err := New(issuer, seed)
	require.NoError(t, err)
	require.NoError(t, p.SetCertifiedData(hashtree.EmptyHash()))

	var c Certificate
	require.NoError(t, hashtree.Unmarshal(p.Certificate(), &c))
	forged := hashtree.LeafHash([]byte("forged"))
	c.Tree = hashtree.Labeled(labelCanister, hashtree.Labeled(issuer.Bytes(),
		hashtree.Labeled(labelCertifiedData, hashtree.Leaf(forged[:]))))
	tampered, err := hashtree.Marshal(c)
	require.NoError(t, err)

	_, _, err = VerifyCertificate(tampered, p.RootPublicKey(), issuer)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, _, err = VerifyCertificate([]byte("junk"), p.RootPublicKey(), issuer)
	assert.ErrorIs(t, err, ErrBadCertificate)
}

func TestSetCertifiedData_ReplacesPrevious(t *testing.T) {
	p, err := New(issuer, seed)
	require.NoError(t, err)

	first := hashtree.LeafHash([]byte("1"))
	second := hashtree.LeafHash([]byte("2"))
	require.NoError(t, p.SetCertifiedData(first))
	require.NoError(t, p.SetCertifiedData(second))

	data, _, err := VerifyCertificate(p.Certificate(), p.RootPublicKey(), issuer)
	require.NoError(t, err)
	assert.Equal(t, second, data)
}
