package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "prismic"

// CacheKey identifies a cached Prismic response.
type CacheKey struct {
	// Repository is the API host, e.g. "spacetraveling.cdn.prismic.io".
	// Repositories sharing one Redis never see each other's entries.
	Repository string

	// Endpoint is the request path (e.g. "/api/v2/documents/search").
	Endpoint string

	// QueryParams are the request query parameters. The "ref" and
	// "access_token" parameters are never part of the key string.
	QueryParams url.Values

	// Ref is the content ref the response was produced for.
	Ref string
}

// String returns a deterministic key.
// Format: prismic:<repository>:<endpoint>:<k1>=<v1>:<k2>=<v2>:ref=<ref>
//
// Example:
//
//	prismic:spacetraveling.cdn.prismic.io:api/v2/documents/search:fetch=post.title:pageSize=2:ref=YEoUJxEAACEAhJxp
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if k.Repository != "" {
		parts = append(parts, strings.ToLower(k.Repository))
	}

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			if key == "ref" || key == "access_token" {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, key+"="+strings.Join(values, ","))
		}
	}

	if ref := k.ContentRef(); ref != "" {
		parts = append(parts, "ref="+ref)
	}

	return strings.Join(parts, ":")
}

// ContentRef returns the ref the key is bound to, falling back to the
// "ref" query parameter.
func (k CacheKey) ContentRef() string {
	if k.Ref != "" {
		return k.Ref
	}
	return k.QueryParams.Get("ref")
}

// KeyFromURL builds the key for a full request URL.
func KeyFromURL(u *url.URL) CacheKey {
	q := u.Query()
	return CacheKey{
		Repository:  u.Host,
		Endpoint:    u.Path,
		QueryParams: q,
		Ref:         q.Get("ref"),
	}
}
