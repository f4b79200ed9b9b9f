package auth

import "errors"

var (
	// ErrNoPrincipal means the request carries no signed-in user.
	ErrNoPrincipal = errors.New("no client principal")
	// ErrMalformedPrincipal means the principal header could not be decoded.
	ErrMalformedPrincipal = errors.New("malformed client principal")
	// ErrMissingToken means no bearer token was sent.
	ErrMissingToken = errors.New("authorization token required")
	// ErrInvalidToken covers bad signatures, wrong roles and expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidPassword means the treasurer password did not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNotConfigured means no treasurer password has been stored.
	ErrNotConfigured = errors.New("treasurer password not configured")
)
