// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication or a missing signed-in session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates a request missing a required identifier or credential.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable indicates the storage backend could not be reached; the call may be retried.
	ErrUnavailable = errors.New("backend unavailable")
)
