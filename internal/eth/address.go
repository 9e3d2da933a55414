// Package eth validates external-chain addresses and signatures and recovers
// the signer of a personal-sign challenge.
package eth

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	dErrors "scorevc/pkg/domain-errors"
)

const (
	addressHexLen   = 40
	signatureHexLen = 130
)

// Address is a validated 20-byte external-chain address.
type Address [20]byte

// AddressHash is the keccak-256 digest of an address's raw bytes. It is the
// only form in which addresses are persisted or logged.
type AddressHash [32]byte

// Signature is a 65-byte r ‖ s ‖ v signature.
type Signature [65]byte

// ParseAddress accepts only the checksum-cased, 0x-prefixed form.
func ParseAddress(s string) (Address, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != addressHexLen+2 {
		return Address{}, dErrors.New(dErrors.CodeAddressFormat, "must start with '0x' and be 42 characters long")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return Address{}, dErrors.Wrap(err, dErrors.CodeAddressFormat, "address is not valid hex")
	}
	checksummed, err := ChecksumEncode(s)
	if err != nil {
		return Address{}, err
	}
	if checksummed != s {
		return Address{}, dErrors.New(dErrors.CodeAddressFormat, "not EIP-55 encoded")
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// ParseSignature accepts a 0x-prefixed 130-hex-character signature.
func ParseSignature(s string) (Signature, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != signatureHexLen+2 {
		return Signature{}, dErrors.New(dErrors.CodeSignatureFormat, "must start with '0x' and be 132 characters long")
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return Signature{}, dErrors.Wrap(err, dErrors.CodeSignatureFormat, "signature is not valid hex")
	}
	var sig Signature
	copy(sig[:], raw)
	return sig, nil
}

// ChecksumEncode re-cases a 40-hex-character address (with or without 0x)
// according to EIP-55 and returns it 0x-prefixed.
func ChecksumEncode(address string) (string, error) {
	trimmed := strings.TrimPrefix(address, "0x")
	if len(trimmed) != addressHexLen {
		return "", dErrors.New(dErrors.CodeAddressFormat, "address must be 40 hex characters")
	}
	lower := strings.ToLower(trimmed)
	digest := crypto.Keccak256([]byte(lower))

	out := make([]byte, 2, addressHexLen+2)
	out[0], out[1] = '0', 'x'
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		switch {
		case c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 'a' && c <= 'f':
			nibble := digest[i/2] >> 4
			if i%2 == 1 {
				nibble = digest[i/2] & 0x0f
			}
			if nibble >= 8 {
				c -= 'a' - 'A'
			}
			out = append(out, c)
		default:
			return "", dErrors.New(dErrors.CodeAddressFormat, "unrecognized hex character at position "+strconv.Itoa(i))
		}
	}
	return string(out), nil
}

// String returns the checksum-cased form.
func (a Address) String() string {
	s, _ := ChecksumEncode(hex.EncodeToString(a[:]))
	return s
}

// Bytes returns a copy of the raw address.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// Hash returns the privacy hash of the address.
func (a Address) Hash() AddressHash {
	var h AddressHash
	copy(h[:], crypto.Keccak256(a[:]))
	return h
}

// Hex returns the full lowercase hex of the hash.
func (h AddressHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Short is the log-safe prefix of the hash.
func (h AddressHash) Short() string {
	return hex.EncodeToString(h[:4])
}

// String returns the 0x-prefixed hex form.
func (s Signature) String() string {
	return "0x" + hex.EncodeToString(s[:])
}
