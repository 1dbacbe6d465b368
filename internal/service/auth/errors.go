package auth

import "errors"

// Common authentication errors
var (
	// ErrInvalidToken indicates the token is malformed, has a bad signature,
	// or otherwise fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token's expiry time has passed.
	ErrExpiredToken = errors.New("token expired")
)
