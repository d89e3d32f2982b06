package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt *time.Time
}

// MemoryStore is an in-process Store for tests and single-shot CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), nowFunc: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.entries[key] = memEntry{value: v, expiresAt: expiry(m.nowFunc(), ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// PurgeExpired drops expired entries and returns how many were removed.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) expired(e memEntry) bool {
	return e.expiresAt != nil && !m.nowFunc().Before(*e.expiresAt)
}
