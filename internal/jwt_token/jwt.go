// Package jwttoken mints and checks caller session tokens. A session binds a
// request to the principal it acts as; the subject claim is that principal's
// textual form.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"scorevc/pkg/domain"
	dErrors "scorevc/pkg/domain-errors"
)

const defaultLeeway = 30 * time.Second

type Claims struct {
	jwt.RegisteredClaims
}

// Principal parses the subject claim. Anonymous subjects are not sessions.
func (c *Claims) Principal() (domain.Principal, error) {
	p, err := domain.ParsePrincipal(c.Subject)
	if err != nil {
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	if p.IsAnonymous() {
		return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "anonymous session subject")
	}
	return p, nil
}

type JWTService struct {
	key      []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

type Option func(*JWTService)

// WithClock replaces time.Now for both minting and validation.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// WithLeeway sets the tolerated clock skew on exp and nbf.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) { s.leeway = d }
}

func NewJWTService(signingKey, issuer, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		key:      []byte(signingKey),
		issuer:   issuer,
		audience: audience,
		leeway:   defaultLeeway,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAccessToken mints an HS256 session for principal valid for ttl.
func (s *JWTService) GenerateAccessToken(principal domain.Principal, ttl time.Duration) (string, error) {
	if principal.IsAnonymous() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "cannot mint a session for the anonymous principal")
	}
	issued := s.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.issuer,
		Subject:   principal.String(),
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(issued),
		NotBefore: jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return signed, nil
}

// ValidateToken checks signature, issuer, audience and validity window.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token has expired")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token not yet valid")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
}
