package blob

import (
	"context"
	"strconv"
	"sync"
)

type memObject struct {
	data    []byte
	version string
}

// Memory is an in-process Store with monotonically increasing versions.
type Memory struct {
	mu      sync.Mutex
	objects map[string]memObject
	seq     uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Get(_ context.Context, container, key string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[memKey(container, key)]
	if !ok {
		return Object{}, ErrNotFound
	}
	return Object{Data: append([]byte(nil), o.data...), Version: o.version}, nil
}

func (m *Memory) Head(_ context.Context, container, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[memKey(container, key)]
	if !ok {
		return "", ErrNotFound
	}
	return o.version, nil
}

func (m *Memory) Put(_ context.Context, container, key string, data []byte, cond Condition) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(container, key)
	cur, exists := m.objects[k]
	if cond.IfNoneMatch && exists {
		return "", ErrPrecondition
	}
	if cond.IfMatch != "" && (!exists || cur.version != cond.IfMatch) {
		return "", ErrPrecondition
	}
	m.seq++
	v := `"` + strconv.FormatUint(m.seq, 10) + `"`
	m.objects[k] = memObject{data: append([]byte(nil), data...), version: v}
	return v, nil
}

func (m *Memory) Delete(_ context.Context, container, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(container, key)
	if _, ok := m.objects[k]; !ok {
		return ErrNotFound
	}
	delete(m.objects, k)
	return nil
}

func memKey(container, key string) string {
	return container + "/" + ObjectName(key)
}
