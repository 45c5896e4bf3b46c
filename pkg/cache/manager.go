package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the key was not found or the entry had expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// refIndexTTL bounds the life of the per-ref key indexes. Indexed entries
// expire on their own TTL well before that.
const refIndexTTL = 24 * time.Hour

// Manager stores Prismic responses in Redis, indexed by repository and ref.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a cache manager. It panics on a nil client.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get returns the entry for key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis TTL and Expires can drift by a second; trust Expires.
	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores entry until its Expires time. Expired entries are ignored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	ref := key.ContentRef()
	if entry.Ref == "" {
		entry.Ref = ref
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	cacheKey := key.String()
	_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cacheKey, data, ttl)
		if key.Repository != "" && ref != "" {
			refs := refsKey(key.Repository)
			index := refIndexKey(key.Repository, ref)
			pipe.SAdd(ctx, index, cacheKey)
			pipe.Expire(ctx, index, refIndexTTL)
			pipe.SAdd(ctx, refs, ref)
			pipe.Expire(ctx, refs, refIndexTTL)
		}
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	return nil
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing entry, typically after a 304.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}

// PurgeStaleRefs deletes the entries of every ref of repository other than
// current and returns how many entries were removed. Prismic never serves an
// old ref again once a new master ref is published.
func (m *Manager) PurgeStaleRefs(ctx context.Context, repository, current string) (int, error) {
	refs, err := m.redis.SMembers(ctx, refsKey(repository)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	removed := 0
	for _, ref := range refs {
		if ref == current {
			continue
		}

		index := refIndexKey(repository, ref)
		keys, err := m.redis.SMembers(ctx, index).Result()
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return removed, fmt.Errorf("redis smembers: %w", err)
		}

		var deleted *redis.IntCmd
		_, err = m.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				deleted = pipe.Del(ctx, keys...)
			}
			pipe.Del(ctx, index)
			pipe.SRem(ctx, refsKey(repository), ref)
			return nil
		})
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return removed, fmt.Errorf("redis purge ref %s: %w", ref, err)
		}
		if deleted != nil {
			removed += int(deleted.Val())
		}
	}

	StaleRefEntriesPurged.Add(float64(removed))
	return removed, nil
}

func refsKey(repository string) string {
	return KeyPrefix + ":" + strings.ToLower(repository) + ":refs"
}

func refIndexKey(repository, ref string) string {
	return refsKey(repository) + ":" + ref
}
