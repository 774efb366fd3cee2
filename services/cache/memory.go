package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process CacheService with per-key TTL. Expired
// entries are purged lazily on access; the store is otherwise unbounded,
// which is acceptable for the bounded key space of portal queries.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewMemoryStore creates a memory-backed cache. defaultTTL applies when
// Set is called with a non-positive expiration.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get implements CacheService.Get
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set implements CacheService.Set
func (m *MemoryStore) Set(key string, value []byte, expiration int32) error {
	ttl := m.defaultTTL
	if expiration > 0 {
		ttl = time.Duration(expiration) * time.Second
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		value:     stored,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Delete implements CacheService.Delete
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
