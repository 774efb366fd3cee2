package cache

import (
	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheStore implements CacheService using memcached, for deployments
// where several workers share one response cache.
type MemcacheStore struct {
	client     *memcache.Client
	defaultTTL int32
}

// NewMemcacheStore creates a memcached-backed cache. defaultTTL is in
// seconds and applies when Set is called with a non-positive expiration.
func NewMemcacheStore(addr string, defaultTTL int32) *MemcacheStore {
	if defaultTTL <= 0 {
		defaultTTL = 3600
	}
	return &MemcacheStore{
		client:     memcache.New(addr),
		defaultTTL: defaultTTL,
	}
}

// Get implements CacheService.Get
func (m *MemcacheStore) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return item.Value, nil
}

// Set implements CacheService.Set
func (m *MemcacheStore) Set(key string, value []byte, expiration int32) error {
	if expiration <= 0 {
		expiration = m.defaultTTL
	}
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: expiration,
	})
}

// Delete implements CacheService.Delete
func (m *MemcacheStore) Delete(key string) error {
	err := m.client.Delete(key)
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}
