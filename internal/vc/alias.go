package vc

import (
	"crypto/ecdsa"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
)

const idAliasCredentialType = "InternetIdentityIdAlias"

// AliasTuple links the caller's dapp principal to the alias principal the
// credential is issued for.
type AliasTuple struct {
	IDAlias domain.Principal
	IDDapp  domain.Principal
}

// SignedIDAlias carries the identity provider's assertion.
type SignedIDAlias struct {
	CredentialJWS string `json:"credential_jws"`
}

type aliasClaims struct {
	jwt.RegisteredClaims
	VC struct {
		CredentialSubject struct {
			IDAlias struct {
				HasIDAlias string `json:"hasIdAlias"`
			} `json:"InternetIdentityIdAlias"`
		} `json:"credentialSubject"`
		Type []string `json:"type"`
	} `json:"vc"`
}

// AliasVerifier checks id-alias assertions signed by the identity provider.
type AliasVerifier struct {
	issuer string
	key    *ecdsa.PublicKey
}

// NewAliasVerifier parses the provider's PEM-encoded ES256 public key.
func NewAliasVerifier(issuer string, keyPEM []byte) (*AliasVerifier, error) {
	key, err := jwt.ParseECPublicKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse identity provider key: %w", err)
	}
	return &AliasVerifier{issuer: issuer, key: key}, nil
}

// Verify checks the assertion was issued to caller and is valid at now.
func (v *AliasVerifier) Verify(alias SignedIDAlias, caller domain.Principal, now time.Time) (AliasTuple, error) {
	claims := &aliasClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(alias.CredentialJWS), claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithSubject(SubjectDID(caller)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return AliasTuple{}, dErrors.Wrap(err, dErrors.CodeInvalidIDAlias, "id alias could not be verified")
	}
	if !slices.Contains(claims.VC.Type, idAliasCredentialType) {
		return AliasTuple{}, dErrors.New(dErrors.CodeInvalidIDAlias, "id alias credential has the wrong type")
	}
	aliasText := strings.TrimPrefix(claims.VC.CredentialSubject.IDAlias.HasIDAlias, didPrefix)
	idAlias, err := domain.ParsePrincipal(aliasText)
	if err != nil {
		return AliasTuple{}, dErrors.Wrap(err, dErrors.CodeInvalidIDAlias, "id alias principal is malformed")
	}
	return AliasTuple{IDAlias: idAlias, IDDapp: caller}, nil
}
