package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogfeed_cache_hits_total",
			Help: "Total number of Prismic response cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogfeed_cache_misses_total",
			Help: "Total number of Prismic response cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache by layer.
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blogfeed_cache_size_bytes",
			Help: "Bytes written to the Prismic response cache",
		},
		[]string{"layer"},
	)

	// NotModifiedResponses tracks 304 answers to conditional requests.
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogfeed_cache_not_modified_total",
			Help: "Total number of 304 Not Modified responses from Prismic",
		},
	)

	// ConditionalRequestsSent tracks requests sent with validators.
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogfeed_cache_conditional_requests_total",
			Help: "Total number of conditional requests sent to Prismic",
		},
	)

	// StaleRefEntriesPurged tracks entries dropped after the master ref moved.
	StaleRefEntriesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogfeed_cache_stale_ref_purged_total",
			Help: "Total number of cache entries purged because their ref is no longer the master ref",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogfeed_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge"
	)
)
