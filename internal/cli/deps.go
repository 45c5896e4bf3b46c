package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/spacetraveling/blogfeed/internal/config"
	"github.com/spacetraveling/blogfeed/pkg/feed"
	"github.com/spacetraveling/blogfeed/pkg/prismic"
)

// newRedis connects to Redis, or returns nil when no address is configured.
func newRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
	return client, nil
}

// newPrismic creates the Prismic client. The returned function releases
// the client and its Redis connection.
func newPrismic(ctx context.Context, cfg *config.Config) (*prismic.Client, *redis.Client, func(), error) {
	rdb, err := newRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}

	pc := prismic.DefaultConfig(cfg.Prismic.Endpoint)
	pc.AccessToken = cfg.Prismic.AccessToken
	pc.DocumentType = cfg.Prismic.DocumentType
	pc.PageSize = cfg.Prismic.PageSize
	pc.Orderings = cfg.Prismic.Orderings
	pc.UserAgent = cfg.Prismic.UserAgent
	pc.Timeout = cfg.Prismic.Timeout
	pc.MaxRetries = cfg.Prismic.MaxRetries
	pc.Redis = rdb

	client, err := prismic.New(pc)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, nil, fmt.Errorf("create prismic client: %w", err)
	}

	cleanup := func() {
		client.Close()
		if rdb != nil {
			rdb.Close()
		}
	}
	return client, rdb, cleanup, nil
}

// newController holds first and loads further pages from src.
func newController(cfg *config.Config, first feed.Page, src feed.DataSource) *feed.Controller {
	return feed.NewController(first, src, feed.WithDedup(cfg.Feed.Dedup))
}
