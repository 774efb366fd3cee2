// Package engine orchestrates thesis retrieval: request validation, the
// response cache, portal throttling, transport retries and extraction.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"yoktez/tezworker/internal/extract"
	"yoktez/tezworker/internal/query"
	"yoktez/tezworker/internal/scraper"
	"yoktez/tezworker/internal/thesis"
	"yoktez/tezworker/logger"
	"yoktez/tezworker/pkg/errors"
	"yoktez/tezworker/pkg/metrics"
	"yoktez/tezworker/services/cache"
	"yoktez/tezworker/services/throttle"
)

const (
	// DefaultCacheTTL is the response cache lifetime in seconds
	DefaultCacheTTL = 3600
	// DefaultMaxAttempts bounds transport retries per request
	DefaultMaxAttempts = 3
	// DefaultRetryBackoff is the initial delay between attempts, doubling each retry
	DefaultRetryBackoff = 500 * time.Millisecond
	// DefaultStatsSample bounds the rows fetched for an aggregation
	DefaultStatsSample = 100

	// DefaultRecentLimit applies when GetRecent is called without a limit
	DefaultRecentLimit = 50
	// MaxRecentLimit caps a recent listing
	MaxRecentLimit = 200
)

// Options configures an Engine. Backend is required; Cache and Throttle
// default to an in-memory store and a one second interval.
type Options struct {
	Backend      scraper.Backend
	Cache        cache.CacheService
	Throttle     *throttle.Throttle
	CacheTTL     int32
	MaxAttempts  int
	RetryBackoff time.Duration
	StatsSample  int
}

// Engine is the retrieval front door. All operations share one cache and
// one throttle, so concurrent callers cannot exceed the portal rate.
type Engine struct {
	backend      scraper.Backend
	cache        cache.CacheService
	throttle     *throttle.Throttle
	cacheTTL     int32
	maxAttempts  int
	retryBackoff time.Duration
	statsSample  int
	log          *logger.Logger
}

// New creates an Engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, errors.NewConfiguration("engine requires a transport backend", nil)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryStore(DefaultCacheTTL * time.Second)
	}
	if opts.Throttle == nil {
		opts.Throttle = throttle.New(time.Second)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.StatsSample <= 0 {
		opts.StatsSample = DefaultStatsSample
	}

	return &Engine{
		backend:      opts.Backend,
		cache:        opts.Cache,
		throttle:     opts.Throttle,
		cacheTTL:     opts.CacheTTL,
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
		statsSample:  opts.StatsSample,
		log:          logger.ForEngine(),
	}, nil
}

// Search runs a simple search and returns at most MaxResults summaries.
func (e *Engine) Search(ctx context.Context, req thesis.SearchRequest) ([]thesis.Summary, error) {
	const op = string(scraper.OpSearch)

	form, err := query.BuildSearch(req)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	max := query.NormalizeMaxResults(req.MaxResults)

	if !e.backend.Supports(scraper.OpSearch) {
		return nil, errors.NewCapability(e.backend.Name(), op, "search not supported by this backend")
	}

	key := e.cacheKey(op, max, form)
	if cached, ok := e.cacheGet(op, key); ok {
		var rows []thesis.Summary
		if err := json.Unmarshal(cached, &rows); err == nil {
			return rows, nil
		}
		// poisoned entry, fall through to a fresh fetch
		_ = e.cache.Delete(key)
	}

	pageHTML, err := e.fetchWithRetry(ctx, op, func() (string, error) {
		return e.backend.SubmitSearch(ctx, form)
	})
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	// filter the whole page before truncating so out-of-range rows at
	// the top cannot crowd out in-range rows further down
	rows, err := e.extractRows(op, pageHTML, 0)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	rows = filterYears(rows, req.YearStart, req.YearEnd)
	if len(rows) > max {
		rows = rows[:max]
	}

	e.cacheSet(op, key, rows)
	metrics.Requests.WithLabelValues(op, "ok").Inc()
	return rows, nil
}

// AdvancedSearch runs a multi-clause boolean search.
func (e *Engine) AdvancedSearch(ctx context.Context, req thesis.AdvancedSearchRequest) ([]thesis.Summary, error) {
	const op = string(scraper.OpAdvancedSearch)

	form, err := query.BuildAdvanced(req)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	max := query.NormalizeMaxResults(req.MaxResults)

	if !e.backend.Supports(scraper.OpAdvancedSearch) {
		return nil, errors.NewCapability(e.backend.Name(), op, "advanced search not supported by this backend")
	}

	key := e.cacheKey(op, max, form)
	if cached, ok := e.cacheGet(op, key); ok {
		var rows []thesis.Summary
		if err := json.Unmarshal(cached, &rows); err == nil {
			return rows, nil
		}
		_ = e.cache.Delete(key)
	}

	pageHTML, err := e.fetchWithRetry(ctx, op, func() (string, error) {
		return e.backend.SubmitAdvanced(ctx, form)
	})
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	rows, err := e.extractRows(op, pageHTML, 0)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	rows = filterYears(rows, req.YearStart, req.YearEnd)
	if len(rows) > max {
		rows = rows[:max]
	}

	e.cacheSet(op, key, rows)
	metrics.Requests.WithLabelValues(op, "ok").Inc()
	return rows, nil
}

// GetDetail looks up the full record for a thesis id. A missing record is
// a normal outcome, reported through found, not an error. Only found
// records are cached.
func (e *Engine) GetDetail(ctx context.Context, thesisID string) (*thesis.Detail, bool, error) {
	const op = string(scraper.OpDetail)

	form, err := query.BuildDetail(thesisID)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, false, err
	}

	if !e.backend.Supports(scraper.OpDetail) {
		return nil, false, errors.NewCapability(e.backend.Name(), op, "detail lookup not supported by this backend")
	}

	key := e.cacheKey(op, 1, form)
	if cached, ok := e.cacheGet(op, key); ok {
		var d thesis.Detail
		if err := json.Unmarshal(cached, &d); err == nil {
			return &d, true, nil
		}
		_ = e.cache.Delete(key)
	}

	pageHTML, err := e.fetchWithRetry(ctx, op, func() (string, error) {
		return e.backend.FetchDetail(ctx, strings.TrimSpace(thesisID))
	})
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, false, errors.NewParse(e.backend.Name(), op, "document parse failed", err)
	}

	d, found := extract.Detail(doc, strings.TrimSpace(thesisID))
	if !found {
		metrics.Requests.WithLabelValues(op, "not_found").Inc()
		return nil, false, nil
	}

	e.cacheSet(op, key, d)
	metrics.Requests.WithLabelValues(op, "ok").Inc()
	return d, true, nil
}

// GetRecent lists theses added to the portal within the past days.
func (e *Engine) GetRecent(ctx context.Context, days, limit int) ([]thesis.Summary, error) {
	const op = string(scraper.OpRecent)

	form, err := query.BuildRecent(days)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	if !e.backend.Supports(scraper.OpRecent) {
		return nil, errors.NewCapability(e.backend.Name(), op, "recent listing not supported by this backend")
	}

	key := e.cacheKey(op, limit, form)
	if cached, ok := e.cacheGet(op, key); ok {
		var rows []thesis.Summary
		if err := json.Unmarshal(cached, &rows); err == nil {
			return rows, nil
		}
		_ = e.cache.Delete(key)
	}

	pageHTML, err := e.fetchWithRetry(ctx, op, func() (string, error) {
		return e.backend.FetchRecent(ctx, days)
	})
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	rows, err := e.extractRows(op, pageHTML, limit)
	if err != nil {
		metrics.Requests.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	e.cacheSet(op, key, rows)
	metrics.Requests.WithLabelValues(op, "ok").Inc()
	return rows, nil
}

// Statistics aggregates a bounded sample of search results by type,
// language and year. The portal has no aggregation endpoint, so the
// counts describe TotalSampled rows, not the full corpus.
func (e *Engine) Statistics(ctx context.Context, filter thesis.StatisticsFilter) (*thesis.Statistics, error) {
	req := thesis.SearchRequest{
		Query:      filter.Query,
		University: filter.University,
		Type:       filter.Type,
		MaxResults: e.statsSample,
	}
	if filter.Year != 0 {
		req.YearStart = filter.Year
		req.YearEnd = filter.Year
	}

	rows, err := e.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	stats := &thesis.Statistics{
		TotalSampled: len(rows),
		ByType:       make(map[string]int),
		ByLanguage:   make(map[string]int),
		ByYear:       make(map[int]int),
	}
	for _, row := range rows {
		typeKey := string(row.Type)
		if typeKey == "" {
			typeKey = "unknown"
		}
		stats.ByType[typeKey]++

		langKey := row.Language
		if langKey == "" {
			langKey = "unknown"
		}
		stats.ByLanguage[langKey]++

		if row.Year != nil {
			stats.ByYear[*row.Year]++
		}
	}
	return stats, nil
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// fetchWithRetry throttles and runs fetch up to maxAttempts times.
// Soft error pages served with a 200 count as transient failures. Only
// transient failures are retried; everything else surfaces immediately.
func (e *Engine) fetchWithRetry(ctx context.Context, op string, fetch func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := e.throttle.Wait(ctx); err != nil {
			return "", errors.NewTransport(e.backend.Name(), op, "cancelled while throttled", err)
		}

		pageHTML, err := fetch()
		if err == nil {
			if !extract.IsErrorPage(pageHTML) {
				return pageHTML, nil
			}
			err = errors.NewTransport(e.backend.Name(), op, "portal served an error page", nil)
		}

		if !errors.Retryable(err) {
			return "", err
		}
		lastErr = err

		if attempt < e.maxAttempts {
			metrics.Retries.WithLabelValues(e.backend.Name()).Inc()
			e.log.Warn().
				Str("op", op).
				Int("attempt", attempt).
				Err(err).
				Msg("Transient failure, retrying")

			backoff := e.retryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", errors.NewTransport(e.backend.Name(), op, "cancelled during backoff", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return "", lastErr
}

// extractRows parses a results page. Rows without a recoverable thesis id
// are dropped and counted; a page full of them usually means the portal
// changed its markup.
func (e *Engine) extractRows(op, pageHTML string, max int) ([]thesis.Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, errors.NewParse(e.backend.Name(), op, "document parse failed", err)
	}

	rows, dropped := extract.Results(doc, max)
	if dropped > 0 {
		metrics.DroppedRows.Add(float64(dropped))
		e.log.Warn().
			Str("op", op).
			Int("dropped", dropped).
			Int("kept", len(rows)).
			Msg("Dropped rows without a thesis id")
	}
	return rows, nil
}

// filterYears applies the requested year range client side. The portal
// ignores the range on some tabs, so out-of-range rows and rows with no
// parseable year are removed here.
func filterYears(rows []thesis.Summary, start, end int) []thesis.Summary {
	if start == 0 && end == 0 {
		return rows
	}

	filtered := rows[:0]
	for _, row := range rows {
		if row.Year == nil {
			continue
		}
		if start != 0 && *row.Year < start {
			continue
		}
		if end != 0 && *row.Year > end {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

func (e *Engine) cacheKey(op string, max int, form url.Values) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", op, max, form.Encode())))
	return "tez:" + op + ":" + hex.EncodeToString(sum[:])
}

func (e *Engine) cacheGet(op, key string) ([]byte, bool) {
	value, err := e.cache.Get(key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			e.log.Warn().Str("op", op).Err(err).Msg("Cache read failed")
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return value, true
}

func (e *Engine) cacheSet(op, key string, value interface{}) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := e.cache.Set(key, encoded, e.cacheTTL); err != nil {
		e.log.Warn().Str("op", op).Err(err).Msg("Cache write failed")
	}
}
