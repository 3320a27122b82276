package kv

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store with the same TTL contract as RedisStore.
// It is meant for tests and single-process deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. A nil clock means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), now: now}
}

// Get returns the live value at key.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

// Set stores value at key until ttl elapses.
func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// CompareAndSet swaps the value at key when it currently equals expected.
func (m *MemoryStore) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok || e.value != expected {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return true, nil
}

// Len reports the number of live keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.entries {
		if _, ok := m.liveLocked(k); ok {
			n++
		}
	}
	return n
}

func (m *MemoryStore) liveLocked(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
