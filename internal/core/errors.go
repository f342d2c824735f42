package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeAlreadyConnected = "already_connected"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeBadRequest       = "bad_request"
)

var (
	// ErrConflict is returned when a job id already has an active connection.
	ErrConflict = errors.New("already connected")
	// ErrNotFound is returned when no connection matches the given identifier.
	ErrNotFound = errors.New("connection not found")
	// ErrUnauthorized is returned when a relay request fails any auth check.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest is returned when a request is structurally invalid.
	ErrBadRequest = errors.New("bad request")
	// ErrNoSender is returned by Connection.Send when no outbound sender
	// has been wired into the registry.
	ErrNoSender = errors.New("sender not configured")
)

// Error wraps a machine-readable code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a coded domain error.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
