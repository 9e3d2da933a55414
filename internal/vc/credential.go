// Package vc issues reputation-score verifiable credentials signed with
// certified signatures: the issuer proves it signed a credential by placing
// its hash in the certified state, not with a private key.
package vc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scorevc/internal/platform/config"
	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
)

// MinScoreArgument is the only argument the credential type accepts.
const MinScoreArgument = "minScore"

const (
	credentialsContext       = "https://www.w3.org/2018/credentials/v1"
	verifiableCredentialType = "VerifiableCredential"
	didPrefix                = "did:icp:"
)

// ArgumentValue is a tagged credential argument: {"Int": n} or {"String": s}.
type ArgumentValue struct {
	Int    *int64  `json:"Int,omitempty"`
	String *string `json:"String,omitempty"`
}

// IntArg builds an integer argument.
func IntArg(n int64) ArgumentValue { return ArgumentValue{Int: &n} }

// StringArg builds a string argument.
func StringArg(s string) ArgumentValue { return ArgumentValue{String: &s} }

// UnmarshalJSON rejects values that are not exactly one of the two variants.
func (a *ArgumentValue) UnmarshalJSON(data []byte) error {
	type plain ArgumentValue
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if (v.Int == nil) == (v.String == nil) {
		return fmt.Errorf("argument must be exactly one of Int or String")
	}
	*a = ArgumentValue(v)
	return nil
}

// CredentialSpec names the requested credential and its arguments.
type CredentialSpec struct {
	CredentialType string                   `json:"credential_type"`
	Arguments      map[string]ArgumentValue `json:"arguments,omitempty"`
}

// ValidateSpec checks the spec names the supported type with exactly one
// positive integer minScore, and returns it.
func ValidateSpec(spec CredentialSpec) (int64, error) {
	if spec.CredentialType != config.CredentialType {
		return 0, dErrors.New(dErrors.CodeUnsupportedCredentialSpec,
			fmt.Sprintf("credential type %q is not supported", spec.CredentialType))
	}
	if len(spec.Arguments) != 1 {
		return 0, dErrors.New(dErrors.CodeUnsupportedCredentialSpec, "expected exactly one argument: minScore")
	}
	arg, ok := spec.Arguments[MinScoreArgument]
	if !ok {
		return 0, dErrors.New(dErrors.CodeUnsupportedCredentialSpec, "missing argument minScore")
	}
	if arg.Int == nil {
		return 0, dErrors.New(dErrors.CodeUnsupportedCredentialSpec, "minScore must be an Int")
	}
	if *arg.Int <= 0 {
		return 0, dErrors.New(dErrors.CodeUnsupportedCredentialSpec, "minScore must be positive")
	}
	return *arg.Int, nil
}

// CredentialParams are the inputs of an unsigned credential.
type CredentialParams struct {
	CredentialType string
	MinScore       int64
	Subject        domain.Principal
	CredentialID   string
	IssuerURL      string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// CredentialClaims is the JWT claim set of an issued credential.
type CredentialClaims struct {
	jwt.RegisteredClaims
	VC CredentialBody `json:"vc"`
}

// CredentialBody is the W3C credential embedded in the vc claim.
type CredentialBody struct {
	Context           string         `json:"@context"`
	Type              []string       `json:"type"`
	CredentialSubject map[string]any `json:"credentialSubject"`
}

// SubjectDID returns the decentralized identifier of a principal.
func SubjectDID(p domain.Principal) string {
	return didPrefix + p.String()
}

// BuildCredentialJWT returns the unsigned credential as a compact JWT with
// alg "none" and an empty signature segment.
func BuildCredentialJWT(p CredentialParams) (string, error) {
	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.IssuerURL,
			Subject:   SubjectDID(p.Subject),
			ID:        p.CredentialID,
			NotBefore: jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		VC: CredentialBody{
			Context: credentialsContext,
			Type:    []string{verifiableCredentialType, p.CredentialType},
			CredentialSubject: map[string]any{
				"id":             SubjectDID(p.Subject),
				p.CredentialType: map[string]any{MinScoreArgument: p.MinScore},
			},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "", fmt.Errorf("encode credential jwt: %w", err)
	}
	return signed, nil
}

// ParsePrepared decodes a prepared credential without verifying it. The
// token carries no signature of its own; it only counts once its hash is
// found in the certified state.
func ParsePrepared(token string) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode prepared credential: %w", err)
	}
	return claims, nil
}
