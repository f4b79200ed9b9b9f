package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/domain/pairing"
	"github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrInternal     = errors.New("internal error")
)

// kindError tags a failure with the operation that produced it and a
// classifying kind. Both the kind and the cause match errors.Is.
type kindError struct {
	op   string
	kind error
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return e.op + ": " + e.kind.Error()
	}
	return e.op + ": " + e.err.Error()
}

func (e *kindError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &kindError{op: op, kind: kind}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &kindError{op: op, kind: kind, err: err}
}

// Wrap prefixes err with op.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// failure maps an error to its HTTP status and stable code.
func failure(err error) (int, string) {
	var conflict *types.ConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, "superseded"
	}
	if code, ok := pairing.RuleCode(err); ok {
		return http.StatusUnprocessableEntity, code
	}

	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, pairing.ErrInvalidRound),
		errors.Is(err, pairing.ErrMissingPerson),
		errors.Is(err, timer.ErrInvalidDuration):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, auth.ErrNoPrincipal), errors.Is(err, auth.ErrMalformedPrincipal):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, "invalid_password"
	case errors.Is(err, auth.ErrNotConfigured):
		return http.StatusConflict, "treasurer_not_configured"
	case errors.Is(err, types.ErrNotFound), errors.Is(err, timer.ErrUnknownItem):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrAlreadyAttending):
		return http.StatusUnprocessableEntity, "already_attending"
	case errors.Is(err, types.ErrNotAttending):
		return http.StatusUnprocessableEntity, "not_attending"
	case errors.Is(err, types.ErrRequestInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, timer.ErrExpired), errors.Is(err, timer.ErrNotIdle), errors.Is(err, timer.ErrNotRunning):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, timer.ErrTooManyTimers):
		return http.StatusTooManyRequests, "too_many_timers"
	case errors.Is(err, ErrBackpressure), errors.Is(err, types.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, types.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	}
	return http.StatusInternalServerError, "internal_error"
}
