package vc

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"scorevc/internal/certified/hashtree"
	"scorevc/internal/certified/platform"
	"scorevc/internal/certified/sigmap"
	"scorevc/pkg/domain"
)

// ErrSignatureNotCertified is returned when a bundle does not prove the
// signing input was certified by the issuer.
var ErrSignatureNotCertified = errors.New("certified signature: not certified")

// SigningMethodIcCs verifies credentials whose signature is a certified
// signature bundle. It is registered with golang-jwt under AlgIcCs.
var SigningMethodIcCs = &signingMethodIcCs{}

func init() {
	jwt.RegisterSigningMethod(AlgIcCs, func() jwt.SigningMethod { return SigningMethodIcCs })
}

// VerificationKey is what a verifier trusts: the platform root key and the
// issuer whose certified data must hold the signature.
type VerificationKey struct {
	RootKey  ed25519.PublicKey
	IssuerID domain.Principal
}

type signingMethodIcCs struct{}

func (m *signingMethodIcCs) Alg() string { return AlgIcCs }

// Sign encodes a sigmap.Bundle. Certified signatures are produced by the
// issuer's state, so the key must be the bundle itself.
func (m *signingMethodIcCs) Sign(_ string, key any) ([]byte, error) {
	bundle, ok := key.(sigmap.Bundle)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	return bundle.Marshal()
}

func (m *signingMethodIcCs) Verify(signingString string, sig []byte, key any) error {
	vk, ok := key.(VerificationKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	pk, err := signingKeyFromInput(signingString)
	if err != nil {
		return err
	}
	if !pk.IssuerID.Equal(vk.IssuerID) {
		return fmt.Errorf("%w: signed by %s", ErrSignatureNotCertified, pk.IssuerID)
	}
	bundle, err := sigmap.ParseBundle(sig)
	if err != nil {
		return err
	}
	certified, _, err := platform.VerifyCertificate(bundle.Certificate, vk.RootKey, vk.IssuerID)
	if err != nil {
		return err
	}
	if bundle.Tree.Digest() != certified {
		return fmt.Errorf("%w: tree does not match certified data", ErrSignatureNotCertified)
	}
	seedHash := sigmap.SeedHash(pk.Seed)
	msgHash := MessageHash(signingString)
	if _, status := bundle.Tree.Lookup([]byte(sigmap.Label), seedHash[:], msgHash[:]); status != hashtree.Found {
		return fmt.Errorf("%w: signature %s", ErrSignatureNotCertified, status)
	}
	return nil
}

// signingKeyFromInput reads the jwk out of the encoded header.
func signingKeyFromInput(signingString string) (SigningPublicKey, error) {
	encoded, _, ok := strings.Cut(signingString, ".")
	if !ok {
		return SigningPublicKey{}, jwt.ErrTokenMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return SigningPublicKey{}, fmt.Errorf("decode jws header: %w", err)
	}
	var header struct {
		JWK *jose.JSONWebKey `json:"jwk"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return SigningPublicKey{}, fmt.Errorf("decode jws header: %w", err)
	}
	if header.JWK == nil {
		return SigningPublicKey{}, fmt.Errorf("jws header has no jwk")
	}
	der, ok := header.JWK.Key.([]byte)
	if !ok {
		return SigningPublicKey{}, fmt.Errorf("jws header jwk is not an octet key")
	}
	return ParseSigningPublicKeyDER(der)
}

// AssembleJWS appends the encoded bundle to a signing input.
func AssembleJWS(signingInput string, bundle sigmap.Bundle) (string, error) {
	sig, err := SigningMethodIcCs.Sign(signingInput, bundle)
	if err != nil {
		return "", fmt.Errorf("encode signature bundle: %w", err)
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// ParseCredential verifies an issued credential and returns its claims.
func ParseCredential(token string, key VerificationKey, now time.Time) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{AlgIcCs}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, ErrSignatureNotCertified
	}
	return claims, nil
}
