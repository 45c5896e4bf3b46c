package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/spacetraveling/blogfeed/pkg/feed"
	"github.com/spacetraveling/blogfeed/pkg/metrics"
	"github.com/spacetraveling/blogfeed/pkg/prismic"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Home is the page rendered at "/".
	Home feed.Page

	// Source serves the load more API.
	Source feed.DataSource

	// Ready reports whether dependencies are reachable. Optional.
	Ready func(ctx context.Context) error

	// RequestTimeout bounds a load more fetch.
	RequestTimeout time.Duration
}

// Server serves the home page and the load more API.
type Server struct {
	engine  *gin.Engine
	source  feed.DataSource
	ready   func(ctx context.Context) error
	timeout time.Duration
	logger  zerolog.Logger

	mu   sync.RWMutex
	home feed.State
}

// PageResponse is the body of GET /api/posts.
type PageResponse struct {
	Items      []PostView `json:"items"`
	NextCursor string     `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

// ErrorResponse is the body of failed API calls.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates the server and its routes.
func NewServer(cfg ServerConfig, logger zerolog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		engine:  gin.New(),
		source:  cfg.Source,
		ready:   cfg.Ready,
		timeout: cfg.RequestTimeout,
		logger:  logger,
		home:    feed.Initialize(cfg.Home),
	}

	s.engine.Use(gin.Recovery(), requestID(), accessLog(logger))

	s.engine.GET("/", s.handleIndex)
	s.engine.GET(PostsAPIPath, s.handlePosts)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// SetHome replaces the page rendered at "/".
func (s *Server) SetHome(p feed.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.home = feed.Initialize(p)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	s.mu.RLock()
	state := s.home
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := RenderIndex(&buf, state); err != nil {
		s.logger.Error().Err(err).Msg("Render failed")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handlePosts(c *gin.Context) {
	cursor := c.Query("cursor")
	if cursor == "" {
		s.fail(c, http.StatusBadRequest, errors.New("cursor is required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	page, err := s.source.FetchPage(ctx, cursor)
	if err != nil {
		status := StatusForError(err)
		s.logger.Warn().
			Err(err).
			Str("request_id", c.GetString(requestIDKey)).
			Int("status", status).
			Msg("Load more failed")
		s.fail(c, status, err)
		return
	}

	c.JSON(http.StatusOK, PageResponse{
		Items:      postViews(page.Items),
		NextCursor: page.NextCursor,
		HasMore:    page.NextCursor != "",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.fail(c, http.StatusServiceUnavailable, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     err.Error(),
		RequestID: c.GetString(requestIDKey),
	})
}

// StatusForError maps a data source error to an HTTP status.
func StatusForError(err error) int {
	var parseErr *prismic.ParseError
	switch {
	case errors.Is(err, prismic.ErrForeignCursor):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.Is(err, prismic.ErrCooldown), errors.Is(err, prismic.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
