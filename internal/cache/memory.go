// Package cache holds the process-local cache tiers shared by the stores:
// a typed in-memory map, a keyed mutex, and an optional Redis tier.
package cache

import "sync"

// Memory is a concurrency-safe typed map. The zero value is not usable; call
// NewMemory.
type Memory[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewMemory creates an empty cache.
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{items: make(map[K]V)}
}

// Get returns the value for k.
func (m *Memory[K, V]) Get(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[k]
	return v, ok
}

// Set stores v under k.
func (m *Memory[K, V]) Set(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[k] = v
}

// SetIf stores v under k when there is no current value or replace reports
// that v should replace it. It returns whether v was stored.
func (m *Memory[K, V]) SetIf(k K, v V, replace func(current V) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[k]; ok && !replace(cur) {
		return false
	}
	m.items[k] = v
	return true
}

// Delete removes k.
func (m *Memory[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, k)
}

// Clear removes everything.
func (m *Memory[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[K]V)
}

// Len returns the number of entries.
func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Keys returns a snapshot of the keys in unspecified order.
func (m *Memory[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]K, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	return out
}
