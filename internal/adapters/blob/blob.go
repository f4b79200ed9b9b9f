// Package blob stores JSON documents as named objects in a container and
// supports the conditional writes used for optimistic concurrency.
//
// Every backend maps its failures onto ErrNotFound, ErrPrecondition and
// ErrTransport so callers can switch on errors.Is.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/onetoone/pkg/metrics"
)

const (
	// MaxObjectBytes bounds a stored document.
	MaxObjectBytes  = 16 << 20
	contentTypeJSON = "application/json"
)

// Object is a stored document and the version token it was read at.
type Object struct {
	Data    []byte
	Version string
}

// Condition restricts a write. The zero value writes unconditionally.
type Condition struct {
	// IfNoneMatch creates the object only if it does not exist yet.
	IfNoneMatch bool
	// IfMatch updates the object only if its version still equals this token.
	IfMatch string
}

// Store is a container of named objects.
type Store interface {
	Get(ctx context.Context, container, key string) (Object, error)
	Head(ctx context.Context, container, key string) (string, error)
	Put(ctx context.Context, container, key string, data []byte, cond Condition) (string, error)
	Delete(ctx context.Context, container, key string) error
}

// ObjectName returns the object name a key is stored under.
func ObjectName(key string) string {
	return key + ".json"
}

// readObject reads a whole object body. A body over MaxObjectBytes is a
// transport error, never a truncated document.
func readObject(r io.Reader, key string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransport, key, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTransport, key, MaxObjectBytes)
	}
	return data, nil
}

// Outcome names the class of err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPrecondition):
		return "conflict"
	default:
		return "transport"
	}
}

// Instrument wraps s so every request is recorded in the storage metrics.
func Instrument(s Store) Store {
	return instrumented{next: s}
}

type instrumented struct {
	next Store
}

func (i instrumented) Get(ctx context.Context, container, key string) (Object, error) {
	start := time.Now()
	obj, err := i.next.Get(ctx, container, key)
	observe("get", start, err)
	return obj, err
}

func (i instrumented) Head(ctx context.Context, container, key string) (string, error) {
	start := time.Now()
	v, err := i.next.Head(ctx, container, key)
	observe("head", start, err)
	return v, err
}

func (i instrumented) Put(ctx context.Context, container, key string, data []byte, cond Condition) (string, error) {
	start := time.Now()
	v, err := i.next.Put(ctx, container, key, data, cond)
	observe("put", start, err)
	return v, err
}

func (i instrumented) Delete(ctx context.Context, container, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, container, key)
	observe("delete", start, err)
	return err
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStorageRequest(op, Outcome(err), float64(time.Since(start).Milliseconds()))
}
