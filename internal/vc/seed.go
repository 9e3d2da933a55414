package vc

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"scorevc/pkg/domain"
)

// Salt keys seed derivation. Two deployments with different salts derive
// unrelated seeds for the same alias.
type Salt [32]byte

// PlaceholderSalt is the fixed development salt. Deployments without a seed
// secret fall back to it, which makes seeds predictable across issuers.
var PlaceholderSalt = Salt(bytes.Repeat([]byte{5}, 32))

const saltInfo = "scorevc seed salt v1"

// DeriveSalt expands secret into a salt with HKDF-SHA256.
func DeriveSalt(secret []byte) (Salt, error) {
	if len(secret) == 0 {
		return Salt{}, fmt.Errorf("seed secret is empty")
	}
	var salt Salt
	r := hkdf.New(sha256.New, secret, nil, []byte(saltInfo))
	if _, err := io.ReadFull(r, salt[:]); err != nil {
		return Salt{}, fmt.Errorf("derive seed salt: %w", err)
	}
	return salt, nil
}

// CalculateSeed returns sha256(len(salt) ‖ salt ‖ len(alias) ‖ alias).
func CalculateSeed(salt Salt, alias domain.Principal) [32]byte {
	raw := alias.Bytes()
	buf := make([]byte, 0, 2+len(salt)+len(raw))
	buf = append(buf, byte(len(salt)))
	buf = append(buf, salt[:]...)
	buf = append(buf, byte(len(raw)))
	buf = append(buf, raw...)
	return sha256.Sum256(buf)
}
