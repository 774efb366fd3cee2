// Package worker runs saved searches on a schedule and publishes theses
// that have not been seen before.
package worker

import (
	"context"
	"time"

	"yoktez/tezworker/internal/thesis"
	"yoktez/tezworker/logger"
	"yoktez/tezworker/pkg/metrics"
	"yoktez/tezworker/services/cache"
	"yoktez/tezworker/services/publisher"
)

// seenTTL keeps dedup markers long enough to outlive the portal's own
// recent window.
const seenTTL = int32(7 * 24 * 3600)

// SearchClient is the slice of the engine the worker needs.
type SearchClient interface {
	Search(ctx context.Context, req thesis.SearchRequest) ([]thesis.Summary, error)
}

// Watcher polls a set of saved searches and publishes new results.
type Watcher struct {
	client    SearchClient
	publisher publisher.Publisher
	cache     cache.CacheService
	queries   []thesis.SearchRequest
	interval  time.Duration
	log       *logger.Logger
}

// New creates a Watcher. The cache doubles as the dedup set: a thesis id
// is published once per seenTTL regardless of how many queries match it.
func New(client SearchClient, pub publisher.Publisher, store cache.CacheService,
	queries []thesis.SearchRequest, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Watcher{
		client:    client,
		publisher: pub,
		cache:     store,
		queries:   queries,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().
		Int("queries", len(w.queries)).
		Dur("interval", w.interval).
		Msg("Watcher started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle runs every saved query once. A failing query is logged and
// skipped so one broken search cannot starve the rest.
func (w *Watcher) runCycle(ctx context.Context) {
	published := 0

	for _, req := range w.queries {
		rows, err := w.client.Search(ctx, req)
		if err != nil {
			w.log.Error().
				Str("query", req.Query).
				Err(err).
				Msg("Saved search failed")
			continue
		}

		for _, row := range rows {
			if ctx.Err() != nil {
				return
			}
			if w.alreadySeen(row.ID) {
				continue
			}
			if err := w.publisher.Publish(ctx, row); err != nil {
				w.log.Error().
					Str("thesis_id", row.ID).
					Err(err).
					Msg("Publish failed")
				continue
			}
			w.markSeen(row.ID)
			metrics.PublishedTheses.Inc()
			published++
		}
	}

	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Stream trim failed")
	}

	w.log.Info().
		Int("published", published).
		Msg("Watch cycle complete")
}

func (w *Watcher) alreadySeen(thesisID string) bool {
	_, err := w.cache.Get(seenKey(thesisID))
	return err == nil
}

func (w *Watcher) markSeen(thesisID string) {
	if err := w.cache.Set(seenKey(thesisID), []byte("1"), seenTTL); err != nil {
		w.log.Warn().Str("thesis_id", thesisID).Err(err).Msg("Dedup marker write failed")
	}
}

func seenKey(thesisID string) string {
	return "seen:" + thesisID
}
