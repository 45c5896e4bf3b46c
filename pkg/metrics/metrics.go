// Package metrics exposes the Prometheus metrics of the blog feed.
// Collectors are defined in their own packages (feed, prismic, cache,
// ratelimit) via promauto and register with the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every collector is added to.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Feed metrics (pkg/feed):
//   - blogfeed_feed_pages_appended_total (Counter): Pages appended to a controller
//   - blogfeed_feed_items_appended_total (Counter): Posts appended after dedup
//   - blogfeed_feed_duplicates_dropped_total (Counter): Posts dropped by dedup
//   - blogfeed_feed_load_errors_total (Counter): Failed LoadMore calls
//   - blogfeed_feed_load_rejected_total{reason} (Counter): LoadMore calls rejected
//     without a fetch (exhausted, in_progress)
//
// CMS metrics (pkg/prismic):
//   - blogfeed_cms_requests_total{endpoint, status} (Counter)
//   - blogfeed_cms_request_duration_seconds{endpoint} (Histogram)
//   - blogfeed_cms_errors_total{class} (Counter): client, server, rate_limit, network
//   - blogfeed_cms_retries_total{error_class} (Counter)
//   - blogfeed_cms_retry_backoff_seconds{error_class} (Histogram)
//   - blogfeed_cms_retry_exhausted_total{error_class} (Counter)
//   - blogfeed_cms_breaker_state{name} (Gauge): 0 closed, 1 half-open, 2 open
//   - blogfeed_cms_parse_errors_total (Counter): Responses rejected at the boundary
//
// Cache metrics (pkg/cache):
//   - blogfeed_cache_hits_total{layer} (Counter)
//   - blogfeed_cache_misses_total (Counter)
//   - blogfeed_cache_size_bytes{layer} (Gauge)
//   - blogfeed_cache_not_modified_total (Counter): 304 responses served from cache
//   - blogfeed_cache_conditional_requests_total (Counter)
//   - blogfeed_cache_stale_ref_purged_total (Counter): entries dropped after a new master ref
//   - blogfeed_cache_errors_total{operation} (Counter)
//
// Cooldown metrics (pkg/ratelimit):
//   - blogfeed_ratelimit_cooldown_seconds (Gauge): Remaining cooldown after a 429
//   - blogfeed_ratelimit_cooldowns_total (Counter)
//   - blogfeed_ratelimit_blocks_total (Counter)
//   - blogfeed_ratelimit_throttles_total (Counter)
//
// Example queries:
//
//	# Load more failure ratio
//	rate(blogfeed_feed_load_errors_total[5m]) / rate(blogfeed_feed_pages_appended_total[5m])
//
//	# Revalidation rate
//	rate(blogfeed_cache_not_modified_total[5m]) / rate(blogfeed_cms_requests_total[5m])
//
//	# P95 Prismic latency
//	histogram_quantile(0.95, rate(blogfeed_cms_request_duration_seconds_bucket[5m]))
