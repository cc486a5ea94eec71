package auth

import (
	"context"
	"errors"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the result of validating a credential.
type Identity struct {
	UserID string
}

// TokenVerifier validates an externally-issued bearer credential and
// resolves the bound user identity. Token issuance lives in the identity
// service, not here.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
