// Package hub fans change events out to stream subscribers.
package hub

import (
	"context"
	"sync"

	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

const defaultBuffer = 64

// Hub is a worker.Handler that copies every event to each subscriber.
// A subscriber whose buffer is full misses the event rather than stalling the others.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan model.ChangeEvent
	next   uint64
	buffer int
	closed bool

	logger logger.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[uint64]chan model.ChangeEvent),
		buffer: defaultBuffer,
		logger: logger.Get().Named("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber. The channel is closed by the returned
// cancel func or when the hub closes.
func (h *Hub) Subscribe() (<-chan model.ChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.ChangeEvent, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	metrics.UpdateStreamSubscribers(len(h.subs))

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		metrics.UpdateStreamSubscribers(len(h.subs))
	}
}

// Handle delivers e to every subscriber.
func (h *Hub) Handle(ctx context.Context, e model.ChangeEvent) error { //nolint:gocritic // hugeParam: ChangeEvent is passed by value
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			metrics.RecordErrorByComponent("hub", "subscriber_lagging")
			h.logger.Debug(ctx, "subscriber lagging, event dropped",
				logger.Int("subscriber", int(id)),
				logger.String("kind", e.Kind),
			)
		}
	}
	return nil
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	metrics.UpdateStreamSubscribers(0)
}
