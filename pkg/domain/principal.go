package domain

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"strings"

	dErrors "scorevc/pkg/domain-errors"
)

// MaxPrincipalLength is the maximum length of a principal's raw bytes.
const MaxPrincipalLength = 29

const anonymousTag = 0x04

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Principal is an opaque caller identity. Its textual form is the
// checksummed, dash-grouped base32 encoding used by the hosting platform.
//
// Principal is comparable and usable as a map key.
type Principal struct {
	raw string
}

// AnonymousPrincipal is the identity of unauthenticated callers.
var AnonymousPrincipal = Principal{raw: string([]byte{anonymousTag})}

// PrincipalFromBytes validates the raw bytes of a principal.
func PrincipalFromBytes(b []byte) (Principal, error) {
	if len(b) > MaxPrincipalLength {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal is longer than 29 bytes")
	}
	return Principal{raw: string(b)}, nil
}

// MustPrincipal parses text and panics on failure. Intended for tests and constants.
func MustPrincipal(text string) Principal {
	p, err := ParsePrincipal(text)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePrincipal parses the textual form and verifies its checksum.
func ParsePrincipal(text string) (Principal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(text) > 63 {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal text is too long")
	}
	compact := strings.ToUpper(strings.ReplaceAll(text, "-", ""))
	decoded, err := principalEncoding.DecodeString(compact)
	if err != nil {
		return Principal{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "principal is not valid base32")
	}
	if len(decoded) < 4 {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal is too short")
	}
	raw := decoded[4:]
	if binary.BigEndian.Uint32(decoded[:4]) != crc32.ChecksumIEEE(raw) {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal checksum mismatch")
	}
	p, err := PrincipalFromBytes(raw)
	if err != nil {
		return Principal{}, err
	}
	if p.String() != text {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal is not in canonical form")
	}
	return p, nil
}

// Bytes returns a copy of the raw principal bytes.
func (p Principal) Bytes() []byte {
	return []byte(p.raw)
}

// Len returns the raw length.
func (p Principal) Len() int {
	return len(p.raw)
}

// IsAnonymous reports whether p is the anonymous principal.
func (p Principal) IsAnonymous() bool {
	return p.raw == AnonymousPrincipal.raw
}

// IsZero reports whether p is the zero value.
func (p Principal) IsZero() bool {
	return p == Principal{}
}

// Equal compares two principals.
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal([]byte(p.raw), []byte(other.raw))
}

// String returns the canonical textual form.
func (p Principal) String() string {
	raw := []byte(p.raw)
	buf := make([]byte, 4, 4+len(raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(raw))
	buf = append(buf, raw...)
	encoded := strings.ToLower(principalEncoding.EncodeToString(buf))

	var sb strings.Builder
	for i := 0; i < len(encoded); i += 5 {
		if i > 0 {
			sb.WriteByte('-')
		}
		end := min(i+5, len(encoded))
		sb.WriteString(encoded[i:end])
	}
	return sb.String()
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
