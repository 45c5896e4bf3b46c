package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spacetraveling/blogfeed/pkg/feed"
)

// ErrPageLimit is returned when MaxPages pages were loaded and the cursor
// still points at more.
var ErrPageLimit = errors.New("page limit reached")

// Config holds walker and batch fetcher configuration.
type Config struct {
	// MaxPages caps the number of pages loaded. 0 means no limit.
	MaxPages int

	// Timeout per page fetch.
	Timeout time.Duration

	// MaxConcurrency is the number of BatchFetcher workers.
	MaxConcurrency int

	// ProgressEvery logs progress every N pages.
	ProgressEvery int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages:       500,
		Timeout:        15 * time.Second,
		MaxConcurrency: 4,
		ProgressEvery:  10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = d.ProgressEvery
	}
	return c
}

// Walker drives a controller until its cursor is exhausted.
type Walker struct {
	config Config
}

// NewWalker creates a walker.
func NewWalker(config Config) *Walker {
	return &Walker{config: config.withDefaults()}
}

// Walk loads pages into ctrl until HasMore is false. On failure it returns
// the state accumulated so far with the error.
func (w *Walker) Walk(ctx context.Context, ctrl *feed.Controller) (feed.State, error) {
	start := time.Now()
	pages := 0

	for ctrl.HasMore() {
		if w.config.MaxPages > 0 && pages >= w.config.MaxPages {
			log.Warn().
				Int("pages", pages).
				Int("items", len(ctrl.Items())).
				Msg("Walk stopped at page limit")
			return ctrl.State(), fmt.Errorf("%w (%d pages)", ErrPageLimit, pages)
		}

		pageCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		_, err := ctrl.LoadMore(pageCtx)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("pages", pages).
				Int("items", len(ctrl.Items())).
				Msg("Walk failed - returning partial results")
			return ctrl.State(), fmt.Errorf("walk stopped after %d pages: %w", pages, err)
		}
		pages++

		if pages%w.config.ProgressEvery == 0 {
			log.Info().
				Int("pages", pages).
				Int("items", len(ctrl.Items())).
				Msg("Walk progress")
		}
	}

	log.Info().
		Int("pages", pages).
		Int("items", len(ctrl.Items())).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return ctrl.State(), nil
}
