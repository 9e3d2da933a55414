package eth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
)

// Vectors from EIP-55.
var checksumVectors = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	"0x52908400098527886E0F7030069857D2E4169EE7",
	"0x8617E340B3D01FA5F11F306F4090FD50E238070D",
	"0xde709f2102306220921060314715629080e2fb77",
	"0x27b1fdb04752bbc536007a920d24acb045561c26",
}

func TestChecksumEncode_Vectors(t *testing.T) {
	for _, want := range checksumVectors {
		got, err := ChecksumEncode(strings.ToLower(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, common.HexToAddress(want).Hex(), got)
	}
}

func TestChecksumEncode_IdempotentAndCaseInsensitive(t *testing.T) {
	for i := 0; i < 32; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		raw := hex.EncodeToString(crypto.PubkeyToAddress(key.PublicKey).Bytes())

		once, err := ChecksumEncode(raw)
		require.NoError(t, err)
		twice, err := ChecksumEncode(once)
		require.NoError(t, err)

		assert.Equal(t, once, twice)
		assert.Equal(t, "0x"+raw, strings.ToLower(once))
	}
}

func TestChecksumEncode_RejectsNonHex(t *testing.T) {
	_, err := ChecksumEncode("0x" + strings.Repeat("g", 40))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAddressFormat))
}

func TestParseAddress(t *testing.T) {
	valid := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	addr, err := ParseAddress(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, addr.String())

	cases := map[string]string{
		"wrong case":    "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"all lowercase": strings.ToLower(valid),
		"no prefix":     valid[2:] + "00",
		"too short":     valid[:41],
		"not hex":       "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeZ",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAddress(input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeAddressFormat))
		})
	}
}

func TestParseSignature(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 65)
	sig, err := ParseSignature(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, sig.String())

	for _, input := range []string{strings.Repeat("ab", 66), "0x" + strings.Repeat("ab", 64), "0x" + strings.Repeat("zz", 65)} {
		_, err := ParseSignature(input)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSignatureFormat), input)
	}
}

func TestAddressHash(t *testing.T) {
	addr, err := ParseAddress(checksumVectors[0])
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(crypto.Keccak256(addr.Bytes())), addr.Hash().Hex())
	assert.Len(t, addr.Hash().Short(), 8)
}

type RecoverSuite struct {
	suite.Suite
	key       *ecdsa.PrivateKey
	address   Address
	principal domain.Principal
}

func TestRecoverSuite(t *testing.T) {
	suite.Run(t, new(RecoverSuite))
}

func (s *RecoverSuite) SetupTest() {
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key
	s.address = AddressFromPublicKey(&key.PublicKey)
	s.principal = domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
}

func (s *RecoverSuite) TestRoundTrip() {
	msg := LinkMessage(s.address, s.principal)
	sig, err := SignMessage(msg, s.key)
	s.Require().NoError(err)
	s.Contains([]byte{27, 28}, sig[64])

	recovered, err := RecoverSigner(msg, sig)
	s.Require().NoError(err)
	s.Equal(s.address, recovered)
}

func (s *RecoverSuite) TestRawRecoveryIDAccepted() {
	msg := "hello"
	sig, err := SignMessage(msg, s.key)
	s.Require().NoError(err)
	sig[64] -= 27

	recovered, err := RecoverSigner(msg, sig)
	s.Require().NoError(err)
	s.Equal(s.address, recovered)
}

func (s *RecoverSuite) TestDifferentMessageRecoversDifferentAddress() {
	sig, err := SignMessage("one", s.key)
	s.Require().NoError(err)

	recovered, err := RecoverSigner("two", sig)
	if err == nil {
		s.NotEqual(s.address, recovered)
	}
}

func (s *RecoverSuite) TestInvalidRecoveryID() {
	sig, err := SignMessage("hello", s.key)
	s.Require().NoError(err)
	sig[64] = 37

	_, err = RecoverSigner("hello", sig)
	s.ErrorIs(err, ErrInvalidRecoveryID)
}

func (s *RecoverSuite) TestZeroScalarsRejected() {
	var sig Signature
	sig[64] = 27
	_, err := RecoverSigner("hello", sig)
	s.ErrorIs(err, ErrInvalidSignature)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
}

func (s *RecoverSuite) TestLinkMessageFormat() {
	msg := LinkMessage(s.address, s.principal)
	s.True(strings.HasPrefix(msg, "Sign this message to link your Ethereum address"))
	s.Contains(msg, "Ethereum address: "+s.address.String())
	s.Contains(msg, "Internet Computer principal: rrkah-fqaaa-aaaaa-aaaaq-cai")
}

func TestHashMessage_Envelope(t *testing.T) {
	want := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	assert.Equal(t, want, HashMessage("hello"))
}
