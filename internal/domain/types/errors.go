package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotStarted         = errors.New("service not started")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyAttending   = errors.New("user is already attending")
	ErrNotAttending       = errors.New("user is not attending")
	ErrRequestInFlight    = errors.New("a request with this idempotency key is still running")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBackpressure       = errors.New("too many pending changes")
	ErrSuperseded         = errors.New("change superseded by a newer version")
)

// ConflictError reports a write that lost to a concurrent one. Latest is the
// value now stored; the local change was discarded.
type ConflictError struct {
	Key     string
	Version string
	Latest  any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, ErrSuperseded)
}

func (e *ConflictError) Unwrap() error { return ErrSuperseded }
