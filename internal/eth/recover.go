package eth

import (
	"crypto/ecdsa"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"

	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
)

// Recovery failures. All carry CodeInvalidSignature.
var (
	ErrInvalidSignature        = dErrors.New(dErrors.CodeInvalidSignature, "invalid signature")
	ErrInvalidRecoveryID       = dErrors.New(dErrors.CodeInvalidSignature, "invalid recovery id")
	ErrPublicKeyRecoveryFailed = dErrors.New(dErrors.CodeInvalidSignature, "public key recovery failure")
)

const signedMessagePrefix = "\x19Ethereum Signed Message:\n"

// HashMessage applies the personal-sign envelope and returns its keccak-256 digest.
func HashMessage(message string) []byte {
	return crypto.Keccak256([]byte(signedMessagePrefix + strconv.Itoa(len(message)) + message))
}

// LinkMessage is the challenge a wallet signs to prove control of address
// on behalf of principal.
func LinkMessage(address Address, principal domain.Principal) string {
	return "Sign this message to link your Ethereum address to your Internet Computer identity." +
		"\n\nEthereum address: " + address.String() +
		"\n\nInternet Computer principal: " + principal.String()
}

// RecoverSigner recovers the address that produced sig over message.
func RecoverSigner(message string, sig Signature) (Address, error) {
	hash := HashMessage(message)

	recoveryID := sig[64] % 27
	if recoveryID > 3 {
		return Address{}, ErrInvalidRecoveryID
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(0, r, s, false) {
		return Address{}, ErrInvalidSignature
	}

	compact := make([]byte, 65)
	copy(compact, sig[:64])
	compact[64] = recoveryID

	pub, err := crypto.SigToPub(hash, compact)
	if err != nil {
		return Address{}, ErrPublicKeyRecoveryFailed
	}
	return AddressFromPublicKey(pub), nil
}

// AddressFromPublicKey derives the address of an ECDSA public key: the low
// 20 bytes of keccak-256 over the uncompressed point without its tag byte.
func AddressFromPublicKey(pub *ecdsa.PublicKey) Address {
	return Address(crypto.PubkeyToAddress(*pub))
}

// SignMessage produces a personal-sign signature with v in {27, 28}, the form
// wallets return.
func SignMessage(message string, key *ecdsa.PrivateKey) (Signature, error) {
	raw, err := crypto.Sign(HashMessage(message), key)
	if err != nil {
		return Signature{}, err
	}
	var sig Signature
	copy(sig[:], raw)
	sig[64] += 27
	return sig, nil
}
