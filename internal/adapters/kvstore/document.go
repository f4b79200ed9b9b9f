package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/onetoone/pkg/logger"
)

// Document is a typed view of one key with a default value.
type Document[T any] struct {
	client *Client
	key    string
	def    json.RawMessage

	// serializes Update so two local writes never share a version
	mu sync.Mutex
}

// NewDocument binds key of c to T. def is what a missing or unreadable key yields.
func NewDocument[T any](c *Client, key string, def T) (*Document[T], error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encode default of %s: %w", key, err)
	}
	return &Document[T]{client: c, key: key, def: raw}, nil
}

// MustDocument is NewDocument for defaults that are known to encode.
func MustDocument[T any](c *Client, key string, def T) *Document[T] {
	d, err := NewDocument(c, key, def)
	if err != nil {
		panic(err)
	}
	return d
}

// Key returns the document key.
func (d *Document[T]) Key() string { return d.key }

// Default returns a fresh copy of the default value.
func (d *Document[T]) Default() T {
	var v T
	_ = json.Unmarshal(d.def, &v)
	return v
}

// Get returns the current value. A stored value that does not decode as T is
// logged and replaced by the default.
func (d *Document[T]) Get(ctx context.Context) T {
	return d.decode(ctx, d.client.Get(ctx, d.key, d.def))
}

// Set writes v conditioned on the last observed version. The error reports
// only an encoding failure; storage failures are in the Result.
func (d *Document[T]) Set(ctx context.Context, v T) (Result[T], error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Result[T]{}, fmt.Errorf("encode %s: %w", d.key, err)
	}
	return d.convert(ctx, d.client.Set(ctx, d.key, raw), v), nil
}

// Update runs fn on the current stored value and writes its result
// conditioned on the version fn saw. An error from fn is returned before
// anything is written. Nothing is written when the key cannot be read or its
// value does not decode; the Result then reports a transport failure.
func (d *Document[T]) Update(ctx context.Context, fn func(T) (T, error)) (Result[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var next T
	r, err := d.client.Update(ctx, d.key, d.def, func(raw json.RawMessage) (json.RawMessage, error) {
		var cur T
		if err := json.Unmarshal(raw, &cur); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUndecodable, d.key, err)
		}
		var err error
		if next, err = fn(cur); err != nil {
			return nil, err
		}
		out, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", d.key, err)
		}
		return out, nil
	})
	switch {
	case errors.Is(err, ErrUndecodable):
		d.client.logger.Warn(ctx, "stored value does not decode, write refused",
			logger.String("key", d.key),
			logger.Error(err),
		)
		return Result[T]{Outcome: OutcomeTransportFailure, Err: err}, nil
	case err != nil:
		return Result[T]{}, err
	}
	return d.convert(ctx, r, next), nil
}

// Refresh drops the cached value and reads the key again.
func (d *Document[T]) Refresh(ctx context.Context) T {
	d.client.Invalidate(d.key)
	return d.Get(ctx)
}

// Watch polls the key and calls fn with every remote change.
func (d *Document[T]) Watch(ctx context.Context, interval time.Duration, fn func(T)) (stop func()) {
	return d.client.StartPolling(ctx, d.key, interval, func(value json.RawMessage, _ string) {
		fn(d.decode(ctx, value))
	})
}

func (d *Document[T]) convert(ctx context.Context, r Result[json.RawMessage], written T) Result[T] {
	out := Result[T]{Outcome: r.Outcome, Version: r.Version, Err: r.Err}
	switch r.Outcome {
	case OutcomeOK:
		out.Value = written
	case OutcomeConflict:
		if r.Value != nil {
			out.Value = d.decode(ctx, r.Value)
		} else {
			out.Value = d.Default()
		}
	}
	return out
}

func (d *Document[T]) decode(ctx context.Context, raw json.RawMessage) T {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		d.client.logger.Warn(ctx, "stored value does not decode, using default",
			logger.String("key", d.key),
			logger.Error(err),
		)
		return d.Default()
	}
	return v
}
