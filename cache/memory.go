package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCapacity is the entry limit used when Memory is created with a
// non-positive capacity.
const DefaultCapacity = 1024

// Memory is a bounded in-process store. Entries expire by TTL and the
// least recently used entry is evicted once capacity is exceeded.
// Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	now func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemory creates a Memory store holding at most capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key if present and unexpired. An expired
// entry is removed and reported as a miss, never returned stale.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*memoryEntry)
	if m.now().After(ent.expiresAt) {
		m.removeLocked(el)
		return nil, false
	}
	m.order.MoveToFront(el)
	return ent.value, true
}

// Set stores value under key for ttl. A non-positive ttl disables
// caching for the write. Existing entries are overwritten wholesale.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.now().Add(ttl)
	if el, ok := m.entries[key]; ok {
		ent := el.Value.(*memoryEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return nil
	}

	el := m.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	m.entries[key] = el
	if m.order.Len() > m.capacity {
		if back := m.order.Back(); back != nil {
			m.removeLocked(back)
		}
	}
	return nil
}

// Delete removes key. Idempotent.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) removeLocked(el *list.Element) {
	ent := el.Value.(*memoryEntry)
	m.order.Remove(el)
	delete(m.entries, ent.key)
}

var _ Store = (*Memory)(nil)
