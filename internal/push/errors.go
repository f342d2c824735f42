package push

import "errors"

var (
	// ErrUnauthorized means the messaging provider rejected the API key
	// or its permissions. Not retryable.
	ErrUnauthorized = errors.New("messaging service rejected credentials")
	// ErrUpstream means the messaging provider failed server-side.
	// Retryable at the caller's discretion.
	ErrUpstream = errors.New("messaging service unavailable")
	// ErrInvalidUniverse means the configured universe id does not exist.
	ErrInvalidUniverse = errors.New("invalid universe id")
)
