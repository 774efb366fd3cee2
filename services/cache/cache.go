package cache

import "errors"

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// CacheService defines the interface for response caching.
// A miss is signaled with ErrCacheMiss, never with a nil value.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time in seconds.
	// A non-positive expiration falls back to the store's default TTL.
	Set(key string, value []byte, expiration int32) error

	// Delete removes a value from the cache
	Delete(key string) error
}
