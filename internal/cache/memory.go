package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local cache for dev/testing and single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	gens    map[string]int64
	now     func() time.Time
}

type entry struct {
	val     []byte
	expires time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), gens: make(map[string]int64), now: time.Now}
}

// Get returns a copy of the stored value when present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

// Set stores val; ttl <= 0 keeps it until invalidated.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Generation returns how many times resource has been invalidated.
func (m *Memory) Generation(_ context.Context, resource string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[resource], nil
}

// InvalidatePrefix advances the resource generation and removes every key
// starting with prefix.
func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[Resource(prefix)]++
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
