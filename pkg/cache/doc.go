// Package cache provides a Redis-backed response cache for Prismic API calls.
//
// Prismic search responses are immutable for a given content ref, so a
// response is cached under a key built from the endpoint, the query and the
// ref. The manager honours the upstream freshness headers:
//
//   - Cache-Control max-age wins when present
//   - otherwise Expires is used
//   - otherwise the entry lives for DefaultTTL
//
// Keys are scoped by repository host. Each stored entry is also indexed by
// its ref, so once Prismic publishes a new master ref the entries of older
// refs can be dropped with PurgeStaleRefs instead of waiting for their TTL.
//
// Entries carrying an ETag or Last-Modified allow conditional requests; a
// 304 Not Modified answer refreshes the stored entry instead of replacing it.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Repository:  "spacetraveling.cdn.prismic.io",
//		Endpoint:    "/api/v2/documents/search",
//		QueryParams: url.Values{"pageSize": []string{"2"}},
//		Ref:         "YEoUJxEAACEAhJxp",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from Prismic, then:
//		entry, _ = cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - blogfeed_cache_hits_total{layer="redis"}
//   - blogfeed_cache_misses_total
//   - blogfeed_cache_size_bytes{layer="redis"}
//   - blogfeed_cache_not_modified_total
//   - blogfeed_cache_conditional_requests_total
//   - blogfeed_cache_stale_ref_purged_total
//   - blogfeed_cache_errors_total{operation}
package cache
