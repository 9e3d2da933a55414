package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "scorevc/pkg/domain-errors"
)

func TestPrincipal_String(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want string
	}{
		{name: "anonymous", raw: []byte{0x04}, want: "2vxsx-fae"},
		{name: "management", raw: []byte{}, want: "aaaaa-aa"},
		{name: "canister", raw: []byte{0, 0, 0, 0, 0, 0, 0, 1, 1, 1}, want: "rrkah-fqaaa-aaaaa-aaaaq-cai"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PrincipalFromBytes(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.String())

			parsed, err := ParsePrincipal(tc.want)
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
			assert.Equal(t, tc.raw, parsed.Bytes())
		})
	}
}

func TestPrincipal_Anonymous(t *testing.T) {
	assert.True(t, AnonymousPrincipal.IsAnonymous())
	assert.Equal(t, "2vxsx-fae", AnonymousPrincipal.String())
	assert.False(t, MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai").IsAnonymous())
}

func TestParsePrincipal_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"bad checksum": "rrkah-fqaaa-aaaaa-aaaaq-caa",
		"not base32":   "rrkah-fqaaa-aaaaa-aaaaq-ca!",
		"uppercase":    "2VXSX-FAE",
		"missing dash": "2vxsxfae",
		"too short":    "aaaa",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePrincipal(text)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestPrincipalFromBytes_TooLong(t *testing.T) {
	_, err := PrincipalFromBytes(make([]byte, MaxPrincipalLength+1))
	require.Error(t, err)

	p, err := PrincipalFromBytes(make([]byte, MaxPrincipalLength))
	require.NoError(t, err)
	assert.Equal(t, MaxPrincipalLength, p.Len())
}

func TestPrincipal_TextRoundTrip(t *testing.T) {
	var p Principal
	require.NoError(t, p.UnmarshalText([]byte("2vxsx-fae")))
	assert.True(t, p.IsAnonymous())

	text, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2vxsx-fae", string(text))
}
