package cache

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity is the number of entries a Memory cache keeps by default.
const DefaultCapacity = 1024

// Memory is a bounded in-process LRU cache, safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemory creates a cache holding at most capacity entries. A capacity of
// zero or less uses DefaultCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	m.order.MoveToFront(el)
	value := el.Value.(*memoryEntry).value
	return append([]byte(nil), value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := append([]byte(nil), value...)
	if el, ok := m.entries[key]; ok {
		el.Value.(*memoryEntry).value = stored
		m.order.MoveToFront(el)
		return nil
	}

	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, value: stored})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
