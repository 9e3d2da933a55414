package jwttoken

import (
	authmw "scorevc/pkg/platform/middleware/auth"
)

// JWTServiceAdapter lets the auth middleware validate sessions without
// depending on the token format.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(raw string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	principal, err := claims.Principal()
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{Principal: principal, JTI: claims.ID}, nil
}
