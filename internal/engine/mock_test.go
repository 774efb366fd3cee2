package engine

import (
	"context"
	"net/url"
	"sync"

	"yoktez/tezworker/internal/scraper"
	"yoktez/tezworker/pkg/errors"
	"yoktez/tezworker/services/cache"
)

// mockBackend counts calls per operation and delegates to injected funcs.
type mockBackend struct {
	mu sync.Mutex

	searchCalls   int
	advancedCalls int
	detailCalls   int
	recentCalls   int

	unsupported map[scraper.Operation]bool

	searchFunc   func(form url.Values) (string, error)
	advancedFunc func(form url.Values) (string, error)
	detailFunc   func(thesisID string) (string, error)
	recentFunc   func(days int) (string, error)
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Supports(op scraper.Operation) bool {
	return !m.unsupported[op]
}

func (m *mockBackend) SubmitSearch(_ context.Context, form url.Values) (string, error) {
	m.mu.Lock()
	m.searchCalls++
	m.mu.Unlock()
	if m.searchFunc == nil {
		return "", errors.NewBadStatus("mock", "search", 500)
	}
	return m.searchFunc(form)
}

func (m *mockBackend) SubmitAdvanced(_ context.Context, form url.Values) (string, error) {
	m.mu.Lock()
	m.advancedCalls++
	m.mu.Unlock()
	if m.advancedFunc == nil {
		return "", errors.NewBadStatus("mock", "advanced_search", 500)
	}
	return m.advancedFunc(form)
}

func (m *mockBackend) FetchDetail(_ context.Context, thesisID string) (string, error) {
	m.mu.Lock()
	m.detailCalls++
	m.mu.Unlock()
	if m.detailFunc == nil {
		return "", errors.NewBadStatus("mock", "detail", 500)
	}
	return m.detailFunc(thesisID)
}

func (m *mockBackend) FetchRecent(_ context.Context, days int) (string, error) {
	m.mu.Lock()
	m.recentCalls++
	m.mu.Unlock()
	if m.recentFunc == nil {
		return "", errors.NewBadStatus("mock", "recent", 500)
	}
	return m.recentFunc(days)
}

func (m *mockBackend) Close() error { return nil }

// flushableCache wraps the memory store so tests can force a miss,
// standing in for TTL expiry without waiting out a real clock.
type flushableCache struct {
	*cache.MemoryStore
}

func newFlushableCache() *flushableCache {
	return &flushableCache{MemoryStore: cache.NewMemoryStore(0)}
}

// flush discards every entry, as if all TTLs elapsed at once.
func (f *flushableCache) flush() {
	f.MemoryStore = cache.NewMemoryStore(0)
}
