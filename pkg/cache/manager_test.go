package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spacetraveling/blogfeed/internal/testutil"
)

func searchKey() CacheKey {
	return CacheKey{
		Endpoint:    "/api/v2/documents/search",
		QueryParams: url.Values{"pageSize": []string{"2"}},
		Ref:         "YEoUJxEAACEAhJxp",
	}
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SetAndGet(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))
	ctx := context.Background()

	entry := &CacheEntry{
		Data:         []byte(`{"results": [], "next_page": null}`),
		ETag:         `"abc123"`,
		Expires:      time.Now().Add(5 * time.Minute),
		LastModified: time.Now().Add(-1 * time.Hour),
		StatusCode:   200,
		Headers:      http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:     time.Now(),
	}

	if err := manager.Set(ctx, searchKey(), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, searchKey())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}
	if got.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, entry.StatusCode)
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))

	_, err := manager.Get(context.Background(), CacheKey{Endpoint: "/api/v2/nothing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := testutil.RedisClient(t)
	manager := NewManager(client)
	ctx := context.Background()

	if err := client.Set(ctx, searchKey().String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := manager.Get(ctx, searchKey())
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestManager_Set_ExpiredEntry(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))
	ctx := context.Background()

	entry := &CacheEntry{
		Data:    []byte(`{}`),
		Expires: time.Now().Add(-1 * time.Hour),
	}

	if err := manager.Set(ctx, searchKey(), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := manager.Get(ctx, searchKey()); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))
	ctx := context.Background()

	entry := &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(5 * time.Minute)}
	if err := manager.Set(ctx, searchKey(), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, searchKey()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, searchKey()); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_UpdateTTL(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))
	ctx := context.Background()

	entry := &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(5 * time.Minute)}
	if err := manager.Set(ctx, searchKey(), entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	newExpires := time.Now().Add(10 * time.Minute)
	if err := manager.UpdateTTL(ctx, searchKey(), newExpires); err != nil {
		t.Fatalf("UpdateTTL failed: %v", err)
	}

	got, err := manager.Get(ctx, searchKey())
	if err != nil {
		t.Fatalf("Get after UpdateTTL failed: %v", err)
	}
	if diff := got.Expires.Sub(newExpires); diff < -time.Second || diff > time.Second {
		t.Errorf("Expires = %v, want %v", got.Expires, newExpires)
	}
}

func TestManager_UpdateTTL_Missing(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))

	err := manager.UpdateTTL(context.Background(), searchKey(), time.Now().Add(time.Minute))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("UpdateTTL() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))

	if err := manager.Set(context.Background(), searchKey(), nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}

func TestManager_PurgeStaleRefs(t *testing.T) {
	manager := NewManager(testutil.RedisClient(t))
	ctx := context.Background()
	const repo = "spacetraveling.cdn.prismic.io"

	keyFor := func(ref, page string) CacheKey {
		return CacheKey{
			Repository:  repo,
			Endpoint:    "/api/v2/documents/search",
			QueryParams: url.Values{"page": []string{page}},
			Ref:         ref,
		}
	}
	entry := func() *CacheEntry {
		return &CacheEntry{
			Data:       []byte(`{"results": []}`),
			Expires:    time.Now().Add(5 * time.Minute),
			StatusCode: 200,
			CachedAt:   time.Now(),
		}
	}

	for _, k := range []CacheKey{keyFor("old", "1"), keyFor("old", "2"), keyFor("new", "1")} {
		if err := manager.Set(ctx, k, entry()); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}
	other := keyFor("old", "1")
	other.Repository = "other.cdn.prismic.io"
	if err := manager.Set(ctx, other, entry()); err != nil {
		t.Fatalf("Set(%s) failed: %v", other, err)
	}

	removed, err := manager.PurgeStaleRefs(ctx, repo, "new")
	if err != nil {
		t.Fatalf("PurgeStaleRefs failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	for _, k := range []CacheKey{keyFor("old", "1"), keyFor("old", "2")} {
		if _, err := manager.Get(ctx, k); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get(%s) err = %v, want ErrCacheMiss", k, err)
		}
	}
	got, err := manager.Get(ctx, keyFor("new", "1"))
	if err != nil {
		t.Fatalf("current ref entry purged: %v", err)
	}
	if got.Ref != "new" {
		t.Errorf("entry Ref = %q, want new", got.Ref)
	}
	if _, err := manager.Get(ctx, other); err != nil {
		t.Errorf("other repository entry purged: %v", err)
	}

	removed, err = manager.PurgeStaleRefs(ctx, repo, "new")
	if err != nil || removed != 0 {
		t.Errorf("second purge = %d, %v; want 0, nil", removed, err)
	}
}
