package session

import "errors"

var (
	// ErrUnauthorized is the only error Resolve returns to callers.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken is returned when a token fails signature, algorithm, issuer,
	// expiry or claim checks. It is wrapped by ErrUnauthorized at the resolver.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
