// Package prismic provides the Prismic REST API v2 client used as the blog's
// content data source, with retry, circuit breaking, a shared 429 cooldown
// and Redis response caching.
package prismic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/spacetraveling/blogfeed/pkg/cache"
	"github.com/spacetraveling/blogfeed/pkg/ratelimit"
)

// maxBodySize bounds the response bodies read from Prismic.
const maxBodySize = cache.MaxEntrySize

// Client is a Prismic repository client.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	cooldown   *ratelimit.Tracker
	cache      *cache.Manager
	breaker    *gobreaker.CircuitBreaker
	retry      RetryConfig
	config     Config
	logger     zerolog.Logger

	refMu     sync.Mutex
	masterRef string
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the repository API entry point,
	// e.g. "https://spacetraveling.cdn.prismic.io/api/v2".
	Endpoint string

	// AccessToken is required for private repositories.
	AccessToken string

	UserAgent string

	// DocumentType is the custom type listed by FirstPage.
	DocumentType string

	// Fetch restricts the returned fields, e.g. "post.title".
	// Defaults to title, subtitle and author of DocumentType.
	Fetch []string

	// PageSize is the number of posts per page (1-100).
	PageSize int

	// Orderings is passed verbatim, e.g. "[document.first_publication_date desc]".
	Orderings string

	// Redis enables the response cache and the shared cooldown. Optional.
	Redis *redis.Client

	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Breaker BreakerConfig
}

// DefaultConfig returns a default configuration for endpoint.
func DefaultConfig(endpoint string) Config {
	retry := DefaultRetryConfig()
	return Config{
		Endpoint:       endpoint,
		UserAgent:      "spacetraveling-blogfeed/1.0",
		DocumentType:   "post",
		PageSize:       2,
		Timeout:        15 * time.Second,
		MaxRetries:     retry.MaxAttempts,
		InitialBackoff: retry.InitialBackoff,
		MaxBackoff:     retry.MaxBackoff,
		Breaker:        DefaultBreakerConfig(),
	}
}

// New creates a client. The configuration is validated.
func New(cfg Config) (*Client, error) {
	endpoint, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" || endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute http(s) url (got %q)", cfg.Endpoint)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.DocumentType == "" {
		return nil, fmt.Errorf("document type is required")
	}
	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return nil, fmt.Errorf("page_size must be between 1 and 100 (got %d)", cfg.PageSize)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	logger := log.With().Str("component", "prismic-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: endpoint,
		breaker:  newBreaker("prismic:"+endpoint.Host, cfg.Breaker, logger),
		retry:    retry,
		config:   cfg,
		logger:   logger,
	}

	if cfg.Redis != nil {
		c.cooldown = ratelimit.NewTracker(cfg.Redis, logger)
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// Do performs a GET with cooldown gating, caching, retries and circuit
// breaking. Client errors (4xx) are returned as responses, not errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: shared cooldown
	if c.cooldown != nil {
		allowed, err := c.cooldown.ShouldAllowRequest(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}
		if err != nil {
			// Redis trouble must not take the blog down with it.
			c.logger.Warn().Err(err).Msg("Cooldown check failed, allowing request")
		} else if !allowed {
			requestsTotal.WithLabelValues(endpoint, "cooldown").Inc()
			return nil, ErrCooldown
		}
	}

	// Step 2: cache lookup and conditional headers
	cacheKey := cache.KeyFromURL(req.URL)
	var cachedEntry *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			cachedEntry = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Entries are always revalidated so a republished ref is never missed.
	if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing Prismic request")

	// Step 3: execute with retry inside the breaker
	execute := func() (interface{}, error) {
		var resp *http.Response
		err := retryWithBackoff(ctx, c.retry, c.logger, func() (ErrorClass, error) {
			var reqErr error
			resp, reqErr = c.httpClient.Do(req)
			if reqErr != nil {
				errClass := c.classifyError(nil, reqErr)
				errorsTotal.WithLabelValues(string(errClass)).Inc()
				requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
				c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
				return errClass, reqErr
			}

			if c.cooldown != nil {
				if err := c.cooldown.RecordResponse(ctx, resp.StatusCode, resp.Header); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record cooldown state")
				}
			}

			if resp.StatusCode == http.StatusNotModified {
				return "", nil
			}

			if resp.StatusCode >= 400 {
				errClass := c.classifyError(resp, nil)
				errorsTotal.WithLabelValues(string(errClass)).Inc()
				requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("status", resp.StatusCode).
					Str("error_class", string(errClass)).
					Msg("Prismic request error")

				if errClass == ErrorClassServer {
					apiErr := &APIError{
						StatusCode: resp.StatusCode,
						ErrorClass: errClass,
						Message:    resp.Status,
					}
					resp.Body.Close()
					return errClass, apiErr
				}
				// Left to the caller, which reads the error message.
				return "", nil
			}

			requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
			return "", nil
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	var result interface{}
	var err error
	if c.breaker != nil {
		result, err = c.breaker.Execute(execute)
	} else {
		result, err = execute()
	}
	if err != nil {
		if isBreakerRejection(err) {
			requestsTotal.WithLabelValues(endpoint, "circuit_open").Inc()
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	resp := result.(*http.Response)

	// Step 4: 304 Not Modified serves the cached entry
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		requestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModifiedResponses.Inc()

		if cachedEntry == nil {
			return nil, &APIError{
				StatusCode: http.StatusNotModified,
				ErrorClass: ErrorClassClient,
				Message:    "not modified without a cached entry",
			}
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		if c.cache != nil {
			newExpires := cache.ExpiresFrom(resp.Header, time.Now())
			if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
			}
		}
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 5: store successful responses
	if resp.StatusCode == http.StatusOK && c.cache != nil {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// get performs a GET on u and returns the body of a 200 response.
// Any other status becomes an *APIError.
func (c *Client) get(ctx context.Context, u *url.URL) ([]byte, error) {
	if c.config.AccessToken != "" {
		q := u.Query()
		if q.Get("access_token") == "" {
			q.Set("access_token", c.config.AccessToken)
			u.RawQuery = q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyError(resp, nil),
			Message:    errorMessage(resp.Status, body),
		}
	}

	return body, nil
}

// Endpoint returns the configured API entry point.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
