package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	cooldownSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blogfeed_ratelimit_cooldown_seconds",
		Help: "Length of the most recent Prismic cooldown window in seconds",
	})

	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_ratelimit_cooldowns_total",
		Help: "Total number of 429 responses that started a cooldown",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_ratelimit_blocks_total",
		Help: "Total number of requests blocked by an active cooldown",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_ratelimit_throttles_total",
		Help: "Total number of requests delayed after repeated 429s",
	})
)

// Tracker records 429 responses and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a tracker backed by redisClient.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: time.Second,
	}
}

// SetThrottleDelay overrides the delay applied when throttling.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState reads the shared state. Missing keys yield the zero state.
func (t *Tracker) GetState(ctx context.Context) (*CooldownState, error) {
	vals, err := t.redis.MGet(ctx, RedisKeyBlockedUntil, RedisKeyConsecutiveLimits, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get cooldown state: %w", err)
	}

	state := &CooldownState{}
	if s, ok := vals[0].(string); ok && s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse blocked until: %w", err)
		}
		state.BlockedUntil = time.UnixMilli(ms)
	}
	if s, ok := vals[1].(string); ok && s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("parse consecutive limits: %w", err)
		}
		state.ConsecutiveLimits = n
	}
	if s, ok := vals[2].(string); ok && s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
		state.LastUpdate = time.UnixMilli(ms)
	}

	return state, nil
}

// RecordResponse updates the shared state from a Prismic response.
// A 429 starts a cooldown; any non-error response clears the 429 streak.
func (t *Tracker) RecordResponse(ctx context.Context, statusCode int, headers http.Header) error {
	now := time.Now()

	if statusCode != http.StatusTooManyRequests {
		if statusCode >= 400 {
			return nil
		}
		if err := t.redis.Del(ctx, RedisKeyConsecutiveLimits).Err(); err != nil {
			return fmt.Errorf("reset consecutive limits: %w", err)
		}
		return nil
	}

	cooldown, ok := ParseRetryAfter(headers.Get("Retry-After"), now)
	if !ok {
		cooldown = DefaultCooldown
	}
	if cooldown > MaxCooldown {
		cooldown = MaxCooldown
	}
	blockedUntil := now.Add(cooldown)

	// A zero expiration would keep the key forever.
	keyTTL := cooldown
	if keyTTL < time.Second {
		keyTTL = time.Second
	}

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil.UnixMilli(), keyTTL)
	streak := pipe.Incr(ctx, RedisKeyConsecutiveLimits)
	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}

	cooldownsTotal.Inc()
	cooldownSeconds.Set(cooldown.Seconds())

	t.logger.Warn().
		Dur("cooldown", cooldown).
		Int64("consecutive_limits", streak.Val()).
		Time("blocked_until", blockedUntil).
		Msg("Prismic rate limit hit, cooling down")

	return nil
}

// ShouldAllowRequest returns false while a cooldown is active. After
// repeated 429s it delays the caller before allowing the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get cooldown state: %w", err)
	}

	if state.IsBlocked() {
		t.logger.Warn().
			Dur("wait_duration", state.TimeUntilUnblocked()).
			Msg("Prismic cooldown active - blocking request")
		blocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("consecutive_limits", state.ConsecutiveLimits).
			Dur("delay", t.throttleDelay).
			Msg("Repeated Prismic rate limits - throttling request")
		throttlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}

// ParseRetryAfter parses a Retry-After value given as delay-seconds or as
// an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		return 0, true
	}
	return d, true
}
