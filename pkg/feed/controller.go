package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DataSource fetches the page that starts at cursor.
// The cursor is opaque and only meaningful to the data source.
type DataSource interface {
	FetchPage(ctx context.Context, cursor string) (Page, error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(ctx context.Context, cursor string) (Page, error)

// FetchPage calls f(ctx, cursor).
func (f DataSourceFunc) FetchPage(ctx context.Context, cursor string) (Page, error) {
	return f(ctx, cursor)
}

// Option configures a Controller.
type Option func(*Controller)

// WithDedup drops appended posts whose ID is already held.
func WithDedup(enabled bool) Option {
	return func(c *Controller) {
		c.dedup = enabled
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller owns a feed State and is its only writer.
type Controller struct {
	mu      sync.Mutex
	state   State
	source  DataSource
	dedup   bool
	seen    map[string]struct{}
	loading bool
	lastErr error
	logger  zerolog.Logger
}

// NewController creates a controller holding the initial page.
func NewController(initial Page, source DataSource, opts ...Option) *Controller {
	c := &Controller{
		source: source,
		logger: log.With().Str("component", "feed").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.state = Initialize(initial)
	if c.dedup {
		// The initial page is kept as delivered; only later pages are filtered.
		c.seen = make(map[string]struct{}, len(c.state.Items))
		for _, p := range c.state.Items {
			c.seen[p.ID] = struct{}{}
		}
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Items: clonePosts(c.state.Items), Cursor: c.state.Cursor}
}

// Items returns a copy of the held posts.
func (c *Controller) Items() []Post {
	return c.State().Items
}

// Cursor returns the current cursor, empty when exhausted.
func (c *Controller) Cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Cursor
}

// HasMore reports whether another page can be loaded.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.HasMore()
}

// Loading reports whether a LoadMore call is outstanding.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError returns the error of the most recent failed load, or nil if the
// most recent load succeeded.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Append merges p into the state and returns the new state.
// Like AppendPage it succeeds even when the cursor was already exhausted.
func (c *Controller) Append(p Page) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(p)
	return State{Items: clonePosts(c.state.Items), Cursor: c.state.Cursor}
}

func (c *Controller) appendLocked(p Page) {
	before := len(c.state.Items)
	if c.dedup {
		var dropped int
		c.state, dropped = appendUnique(c.state, p, c.seen)
		if dropped > 0 {
			DuplicatesDropped.Add(float64(dropped))
			c.logger.Debug().
				Int("dropped", dropped).
				Msg("Dropped already-held posts")
		}
	} else {
		c.state = AppendPage(c.state, p)
	}

	added := len(c.state.Items) - before
	PagesAppended.Inc()
	ItemsAppended.Add(float64(added))

	c.logger.Debug().
		Int("added", added).
		Int("total", len(c.state.Items)).
		Bool("has_more", c.state.HasMore()).
		Msg("Page appended")
}

// LoadMore fetches the page at the current cursor and appends it.
//
// It returns ErrNoMorePages without fetching when the cursor is exhausted and
// ErrLoadInProgress while another call is outstanding. A data source failure
// leaves the state unchanged and is returned as a *LoadError, which is also
// kept as LastError until the next successful load.
func (c *Controller) LoadMore(ctx context.Context) (Page, error) {
	c.mu.Lock()
	if !c.state.HasMore() {
		c.mu.Unlock()
		LoadRejected.WithLabelValues("exhausted").Inc()
		return Page{}, ErrNoMorePages
	}
	if c.loading {
		c.mu.Unlock()
		LoadRejected.WithLabelValues("in_progress").Inc()
		c.logger.Debug().Msg("Load rejected: another load is outstanding")
		return Page{}, ErrLoadInProgress
	}
	c.loading = true
	cursor := c.state.Cursor
	c.mu.Unlock()

	page, err := c.source.FetchPage(ctx, cursor)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if err != nil {
		LoadErrors.Inc()
		c.lastErr = &LoadError{Cursor: cursor, Err: err}
		c.logger.Warn().
			Err(err).
			Str("cursor", cursor).
			Msg("Page load failed, state unchanged")
		return Page{}, c.lastErr
	}

	c.lastErr = nil
	c.appendLocked(page)
	return page, nil
}
