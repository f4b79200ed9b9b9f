package blob

import "errors"

var (
	// ErrNotFound means the object does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrPrecondition means a conditional write was rejected (HTTP 412 or 409).
	ErrPrecondition = errors.New("blob precondition failed")
	// ErrTransport covers network failures and unexpected responses.
	ErrTransport = errors.New("blob transport error")
)
