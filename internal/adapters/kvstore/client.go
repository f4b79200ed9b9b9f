// Package kvstore is a key-value client over a blob.Store.
//
// Each key holds one JSON document. The client keeps a read-through cache of
// the documents it has seen together with their version tokens and uses them
// for conditional writes. A write that loses a race is discarded: the client
// refetches the remote document, caches it, tells the conflict handler and
// returns it to the caller as a Conflict result.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/okian/onetoone/internal/adapters/blob"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

type entry struct {
	state   State
	value   json.RawMessage
	version string
}

// Client is safe for concurrent use. Overlapping Set calls on the same key are
// not serialized; use Document.Update for read-modify-write.
type Client struct {
	store     blob.Store
	container string

	mu      sync.Mutex
	entries map[string]*entry

	pollMu  sync.Mutex
	pollers map[string]*poller
	closed  bool

	onConflict ConflictHandler
	logger     logger.Logger
}

// New creates a client for the documents of container.
func New(store blob.Store, container string, opts ...Option) *Client {
	c := &Client{
		store:     store,
		container: container,
		entries:   make(map[string]*entry),
		pollers:   make(map[string]*poller),
		logger:    logger.Get().Named("kvstore"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Container returns the container the client reads and writes.
func (c *Client) Container() string { return c.container }

// Get returns the document stored under key. A missing key is created with def
// and def is returned whether or not that create won. Other failures are logged
// and also yield def.
func (c *Client) Get(ctx context.Context, key string, def json.RawMessage) json.RawMessage {
	value, _, found, err := c.read(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn(ctx, "read failed, using default",
			logger.String("container", c.container),
			logger.String("key", key),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("kvstore", "read")
		return clone(def)
	case found:
		return value
	}

	version, err := c.store.Put(ctx, c.container, key, def, blob.Condition{IfNoneMatch: true})
	if err != nil {
		// someone else created it first or the store is down; read again next time
		c.logger.Debug(ctx, "default not stored",
			logger.String("key", key),
			logger.Error(err),
		)
		return clone(def)
	}
	c.cache(key, def, version)
	return clone(def)
}

// Set writes value conditioned on the last version observed for key. A key
// never observed is written unconditionally.
func (c *Client) Set(ctx context.Context, key string, value json.RawMessage) Result[json.RawMessage] {
	c.mu.Lock()
	var cond blob.Condition
	if e, ok := c.entries[key]; ok {
		cond.IfMatch = e.version
	}
	c.mu.Unlock()
	return c.put(ctx, key, value, cond)
}

// Update runs fn on the document stored under key and writes its result
// conditioned on the version fn saw. A missing key is passed to fn as def and
// written create-only. When the key cannot be read nothing is written and the
// result is a transport failure; an error from fn is returned as is.
func (c *Client) Update(ctx context.Context, key string, def json.RawMessage, fn func(json.RawMessage) (json.RawMessage, error)) (Result[json.RawMessage], error) {
	current, version, found, err := c.read(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "read failed, write not attempted",
			logger.String("container", c.container),
			logger.String("key", key),
			logger.Error(err),
		)
		metrics.RecordWriteOutcome(OutcomeTransportFailure.String())
		metrics.RecordErrorByComponent("kvstore", "read")
		return Result[json.RawMessage]{Outcome: OutcomeTransportFailure, Err: err}, nil
	}
	cond := blob.Condition{IfMatch: version}
	if !found {
		current = clone(def)
		cond = blob.Condition{IfNoneMatch: true}
	}
	next, err := fn(current)
	if err != nil {
		return Result[json.RawMessage]{}, err
	}
	return c.put(ctx, key, next, cond), nil
}

// read returns the cached or remote document of key with its version. found is
// false when the store has no such key.
func (c *Client) read(ctx context.Context, key string) (value json.RawMessage, version string, found bool, err error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && (e.state == StateCached || e.state == StateConflict) {
		value, version = clone(e.value), e.version
		c.mu.Unlock()
		metrics.RecordCacheHit()
		return value, version, true, nil
	}
	c.entry(key).state = StateLoading
	c.mu.Unlock()
	metrics.RecordCacheMiss()

	obj, err := c.store.Get(ctx, c.container, key)
	switch {
	case err == nil:
		c.cache(key, obj.Data, obj.Version)
		return clone(obj.Data), obj.Version, true, nil
	case errors.Is(err, blob.ErrNotFound):
		c.Invalidate(key)
		return nil, "", false, nil
	default:
		c.Invalidate(key)
		return nil, "", false, err
	}
}

func (c *Client) put(ctx context.Context, key string, value json.RawMessage, cond blob.Condition) Result[json.RawMessage] {
	version, err := c.store.Put(ctx, c.container, key, value, cond)
	switch {
	case err == nil:
		c.cache(key, value, version)
		metrics.RecordWriteOutcome(OutcomeOK.String())
		return Result[json.RawMessage]{Outcome: OutcomeOK, Value: clone(value), Version: version}
	case errors.Is(err, blob.ErrPrecondition):
		metrics.RecordWriteConflict(key)
		metrics.RecordWriteOutcome(OutcomeConflict.String())
		return c.resolveConflict(ctx, key, err)
	default:
		c.logger.Error(ctx, "write failed",
			logger.String("container", c.container),
			logger.String("key", key),
			logger.Error(err),
		)
		metrics.RecordWriteOutcome(OutcomeTransportFailure.String())
		metrics.RecordErrorByComponent("kvstore", "write")
		return Result[json.RawMessage]{Outcome: OutcomeTransportFailure, Err: err}
	}
}

// resolveConflict discards the local write and adopts the remote document.
func (c *Client) resolveConflict(ctx context.Context, key string, cause error) Result[json.RawMessage] {
	c.mu.Lock()
	c.entry(key).state = StateConflict
	c.mu.Unlock()

	obj, err := c.store.Get(ctx, c.container, key)
	if err != nil {
		c.logger.Warn(ctx, "conflict refetch failed",
			logger.String("key", key),
			logger.Error(err),
		)
		c.Invalidate(key)
		return Result[json.RawMessage]{Outcome: OutcomeConflict, Err: errors.Join(cause, err)}
	}
	c.cache(key, obj.Data, obj.Version)
	c.logger.Info(ctx, "local write superseded",
		logger.String("key", key),
		logger.String("version", obj.Version),
	)
	if c.onConflict != nil {
		c.onConflict(key, clone(obj.Data), obj.Version)
	}
	return Result[json.RawMessage]{Outcome: OutcomeConflict, Value: clone(obj.Data), Version: obj.Version, Err: cause}
}

// Invalidate drops the cached document and version of key.
func (c *Client) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// State reports the cache state of key.
func (c *Client) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.state
	}
	return StateUnloaded
}

// Version returns the last observed version of key, or "".
func (c *Client) Version(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.version
	}
	return ""
}

// States returns the cache state of every known key.
func (c *Client) States() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.state.String()
	}
	return out
}

// Polled returns the keys being polled, sorted.
func (c *Client) Polled() []string {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	keys := make([]string, 0, len(c.pollers))
	for k := range c.pollers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// entry expects c.mu held.
func (c *Client) entry(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (c *Client) cache(key string, value json.RawMessage, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entry(key)
	e.state = StateCached
	e.value = clone(value)
	e.version = version
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
