// Package dedupe tracks idempotency keys so a retried request reuses the
// result of the first one.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records request keys and the result each one produced.
type Deduper interface {
	// Claim atomically records key if it is new. For a key claimed earlier it
	// returns the stored result ("" while the first request is still running)
	// and true.
	Claim(ctx context.Context, key string) (string, bool)

	// Resolve stores the result for a claimed key. Unknown keys are ignored.
	Resolve(ctx context.Context, key, result string)

	// Unrecord releases a claim whose request failed so it can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// node is an entry of the insertion-ordered list; head is newest, tail oldest.
type node struct {
	key    string
	result string
	prev   *node
	next   *node
}

func (n *node) reset() {
	*n = node{}
}

// inMemoryDeduper keeps keys in a map plus an insertion-ordered list.
// Bounded mode (maxSize > 0) evicts the oldest key when full.
// Unbounded mode (maxSize <= 0) never evicts.
type inMemoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node
	tail     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*node)
	d.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, ok := d.seen[key]; ok {
		return n.result, true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	n := d.nodePool.Get().(*node)
	n.key = key
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
	d.seen[key] = n
	d.size.Add(1)
	return "", false
}

func (d *inMemoryDeduper) Resolve(_ context.Context, key, result string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.seen[key]; ok {
		n.result = result
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.seen[key]; ok {
		d.remove(n)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// evictOldest expects d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if d.tail != nil {
		d.remove(d.tail)
	}
}

// remove expects d.mu held.
func (d *inMemoryDeduper) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	delete(d.seen, n.key)
	n.reset()
	d.nodePool.Put(n)
	d.size.Add(-1)
}
