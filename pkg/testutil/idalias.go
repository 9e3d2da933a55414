package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// IdentityProvider mints ES256 id-alias assertions for tests.
type IdentityProvider struct {
	Issuer string
	key    *ecdsa.PrivateKey
}

// NewIdentityProvider generates a fresh P-256 provider key.
func NewIdentityProvider(t *testing.T, issuer string) *IdentityProvider {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "generate identity provider key")
	return &IdentityProvider{Issuer: issuer, key: key}
}

// PublicKeyPEM returns the provider key as a PKIX PEM block.
func (p *IdentityProvider) PublicKeyPEM(t *testing.T) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&p.key.PublicKey)
	require.NoError(t, err, "marshal identity provider key")
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// IDAlias asserts that dapp (a principal text) owns alias, valid from
// issuedAt for ttl.
func (p *IdentityProvider) IDAlias(t *testing.T, dapp, alias string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss": p.Issuer,
		"sub": "did:icp:" + dapp,
		"nbf": issuedAt.Unix(),
		"exp": issuedAt.Add(ttl).Unix(),
		"vc":  map[string]any{
			"@context":          "https://www.w3.org/2018/credentials/v1",
			"type":              []string{"VerifiableCredential", "InternetIdentityIdAlias"},
			"credentialSubject": map[string]any{
				"InternetIdentityIdAlias": map[string]any{"hasIdAlias": alias},
			},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(p.key)
	require.NoError(t, err, "sign id alias")
	return signed
}
