package vc

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"scorevc/internal/certified/hashtree"
	"scorevc/pkg/domain"
)

// AlgIcCs names the certified-signature JWS algorithm.
const AlgIcCs = "IcCs"

const signingDomain = "iccs_verifiable_credential"

// oidCanisterSig identifies certified-signature public keys.
var oidCanisterSig = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 56387, 1, 2}

// SigningPublicKey identifies a certified signature: the issuer whose state
// holds it and the seed it was stored under.
type SigningPublicKey struct {
	IssuerID domain.Principal
	Seed     []byte
}

// Raw is len(issuer) ‖ issuer ‖ seed.
func (k SigningPublicKey) Raw() []byte {
	issuer := k.IssuerID.Bytes()
	out := make([]byte, 0, 1+len(issuer)+len(k.Seed))
	out = append(out, byte(len(issuer)))
	out = append(out, issuer...)
	return append(out, k.Seed...)
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// DER wraps Raw in a SubjectPublicKeyInfo.
func (k SigningPublicKey) DER() ([]byte, error) {
	raw := k.Raw()
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{Algorithm: oidCanisterSig},
		PublicKey: asn1.BitString{Bytes: raw, BitLength: 8 * len(raw)},
	})
	if err != nil {
		return nil, fmt.Errorf("encode signing public key: %w", err)
	}
	return der, nil
}

// JWK is the key as it appears in a credential's JWS header.
func (k SigningPublicKey) JWK() (*jose.JSONWebKey, error) {
	der, err := k.DER()
	if err != nil {
		return nil, err
	}
	return &jose.JSONWebKey{Key: der, Algorithm: AlgIcCs}, nil
}

// ParseSigningPublicKeyDER reverses DER.
func ParseSigningPublicKeyDER(der []byte) (SigningPublicKey, error) {
	var spki subjectPublicKeyInfo
	rest, err := asn1.Unmarshal(der, &spki)
	if err != nil {
		return SigningPublicKey{}, fmt.Errorf("decode signing public key: %w", err)
	}
	if len(rest) != 0 {
		return SigningPublicKey{}, fmt.Errorf("decode signing public key: trailing data")
	}
	if !spki.Algorithm.Algorithm.Equal(oidCanisterSig) {
		return SigningPublicKey{}, fmt.Errorf("decode signing public key: unexpected algorithm %v", spki.Algorithm.Algorithm)
	}
	raw := spki.PublicKey.RightAlign()
	if len(raw) == 0 || int(raw[0]) > len(raw)-1 {
		return SigningPublicKey{}, fmt.Errorf("decode signing public key: bad issuer length")
	}
	n := int(raw[0])
	issuer, err := domain.PrincipalFromBytes(raw[1 : 1+n])
	if err != nil {
		return SigningPublicKey{}, fmt.Errorf("decode signing public key: %w", err)
	}
	return SigningPublicKey{IssuerID: issuer, Seed: append([]byte(nil), raw[1+n:]...)}, nil
}

type jwsHeader struct {
	Alg string           `json:"alg"`
	Typ string           `json:"typ"`
	JWK *jose.JSONWebKey `json:"jwk"`
}

// SigningInput replaces the credential's header with an IcCs header
// carrying pk and keeps the payload segment byte for byte.
func SigningInput(credentialJWT string, pk SigningPublicKey) (string, error) {
	parts := strings.Split(credentialJWT, ".")
	if len(parts) != 3 || parts[1] == "" {
		return "", fmt.Errorf("credential is not a compact JWT")
	}
	jwk, err := pk.JWK()
	if err != nil {
		return "", err
	}
	header, err := json.Marshal(jwsHeader{Alg: AlgIcCs, Typ: "JWT", JWK: jwk})
	if err != nil {
		return "", fmt.Errorf("encode jws header: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(header) + "." + parts[1], nil
}

// MessageHash is sha256(len(domain) ‖ domain ‖ signingInput).
func MessageHash(signingInput string) hashtree.Hash {
	h := sha256.New()
	h.Write([]byte{byte(len(signingDomain))})
	h.Write([]byte(signingDomain))
	h.Write([]byte(signingInput))
	var out hashtree.Hash
	copy(out[:], h.Sum(nil))
	return out
}
