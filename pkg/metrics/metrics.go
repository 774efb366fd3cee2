package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests counts engine operations by operation and outcome
	// (ok, error, not_found).
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tezworker",
		Name:      "requests_total",
		Help:      "Engine operations by operation and outcome",
	}, []string{"op", "outcome"})

	// CacheHits counts cache hits by operation
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tezworker",
		Name:      "cache_hits_total",
		Help:      "Response cache hits by operation",
	}, []string{"op"})

	// CacheMisses counts cache misses by operation
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tezworker",
		Name:      "cache_misses_total",
		Help:      "Response cache misses by operation",
	}, []string{"op"})

	// Retries counts transport retry attempts by backend
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tezworker",
		Name:      "transport_retries_total",
		Help:      "Retried transport attempts by backend",
	}, []string{"backend"})

	// DroppedRows counts result rows discarded for missing thesis ids
	DroppedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tezworker",
		Name:      "dropped_rows_total",
		Help:      "Result rows discarded because no thesis id could be recovered",
	})

	// PublishedTheses counts theses published to the watch stream
	PublishedTheses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tezworker",
		Name:      "published_theses_total",
		Help:      "New theses published by the watch worker",
	})
)
