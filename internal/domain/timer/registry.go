package timer

import "sync"

// Registry holds the timers of a process, bounded by a maximum count.
type Registry struct {
	mu     sync.RWMutex
	timers map[string]*Timer
	max    int
}

// NewRegistry creates a registry holding at most max timers. max <= 0 means unbounded.
func NewRegistry(max int) *Registry {
	return &Registry{timers: make(map[string]*Timer), max: max}
}

// Create builds a timer with opts and registers it.
func (r *Registry) Create(opts ...Option) (*Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.timers) >= r.max {
		return nil, ErrTooManyTimers
	}
	t := New(opts...)
	r.timers[t.ID()] = t
	return t, nil
}

// Get returns the timer registered under id.
func (r *Registry) Get(id string) (*Timer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timers[id]
	return t, ok
}

// Delete stops and removes the timer registered under id.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	t, ok := r.timers[id]
	delete(r.timers, id)
	r.mu.Unlock()
	if ok {
		t.Close()
	}
	return ok
}

// Len returns the number of registered timers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.timers)
}

// Running returns the number of timers currently counting down.
func (r *Registry) Running() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.timers {
		if t.Snapshot().State == StateRunning {
			n++
		}
	}
	return n
}

// Close stops every timer and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	timers := r.timers
	r.timers = make(map[string]*Timer)
	r.mu.Unlock()
	for _, t := range timers {
		t.Close()
	}
}
