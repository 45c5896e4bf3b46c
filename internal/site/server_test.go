package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spacetraveling/blogfeed/internal/testutil"
	"github.com/spacetraveling/blogfeed/pkg/feed"
	"github.com/spacetraveling/blogfeed/pkg/prismic"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(src feed.DataSource, home feed.Page) *Server {
	return NewServer(ServerConfig{
		Home:           home,
		Source:         src,
		RequestTimeout: time.Second,
	}, zerolog.Nop())
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Index(t *testing.T) {
	srv := newTestServer(nil, feed.Page{Items: samplePosts(), NextCursor: "c2"})

	w := get(t, srv.Handler(), "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), LoadMoreLabel) {
		t.Error("home page has no load more button")
	}

	srv.SetHome(feed.Page{Items: samplePosts()[:1]})
	w = get(t, srv.Handler(), "/")
	if strings.Contains(w.Body.String(), LoadMoreLabel) {
		t.Error("button still rendered after SetHome without cursor")
	}
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(nil, feed.Page{})

	w := get(t, srv.Handler(), "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestServer_Ready(t *testing.T) {
	srv := NewServer(ServerConfig{
		Ready: func(context.Context) error { return errors.New("redis down") },
	}, zerolog.Nop())

	w := get(t, srv.Handler(), "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(nil, feed.Page{})
	get(t, srv.Handler(), "/health")

	w := get(t, srv.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "blogfeed_http_requests_total") {
		t.Error("metrics output missing blogfeed_http_requests_total")
	}
}

func TestServer_RequestID(t *testing.T) {
	srv := newTestServer(nil, feed.Page{})

	w := get(t, srv.Handler(), "/health")
	if _, err := uuid.Parse(w.Header().Get(RequestIDHeader)); err != nil {
		t.Errorf("generated request id %q is not a uuid", w.Header().Get(RequestIDHeader))
	}

	incoming := uuid.NewString()
	w = get(t, srv.Handler(), "/health", RequestIDHeader, incoming)
	if got := w.Header().Get(RequestIDHeader); got != incoming {
		t.Errorf("request id = %q, want incoming %q", got, incoming)
	}

	w = get(t, srv.Handler(), "/health", RequestIDHeader, "not-a-uuid")
	if got := w.Header().Get(RequestIDHeader); got == "not-a-uuid" {
		t.Error("malformed incoming request id was reused")
	}
}

func TestServer_Posts(t *testing.T) {
	var gotCursor string
	src := feed.DataSourceFunc(func(_ context.Context, cursor string) (feed.Page, error) {
		gotCursor = cursor
		return feed.Page{Items: samplePosts()[:1], NextCursor: "c3"}, nil
	})
	srv := newTestServer(src, feed.Page{})

	w := get(t, srv.Handler(), PostsAPIPath+"?cursor="+url.QueryEscape("c2&x=1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotCursor != "c2&x=1" {
		t.Errorf("cursor = %q", gotCursor)
	}

	var resp PageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Href != "/post/como-utilizar-hooks" {
		t.Errorf("items = %+v", resp.Items)
	}
	if resp.NextCursor != "c3" || !resp.HasMore {
		t.Errorf("next_cursor = %q, has_more = %v", resp.NextCursor, resp.HasMore)
	}
}

func TestServer_PostsMissingCursor(t *testing.T) {
	called := false
	src := feed.DataSourceFunc(func(context.Context, string) (feed.Page, error) {
		called = true
		return feed.Page{}, nil
	})
	srv := newTestServer(src, feed.Page{})

	w := get(t, srv.Handler(), PostsAPIPath)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if called {
		t.Error("data source called without a cursor")
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", prismic.ErrForeignCursor), http.StatusBadRequest},
		{&prismic.ParseError{Field: "results", Reason: "missing"}, http.StatusBadGateway},
		{prismic.ErrCooldown, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: open", prismic.ErrCircuitOpen), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&prismic.APIError{StatusCode: 500, ErrorClass: prismic.ErrorClassServer}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := StatusForError(tt.err); got != tt.want {
				t.Errorf("StatusForError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServer_PostsAgainstPrismic(t *testing.T) {
	mock := testutil.NewMockPrismic(testutil.Posts(3)...)
	defer mock.Close()

	cfg := prismic.DefaultConfig(mock.Endpoint())
	cfg.InitialBackoff = time.Millisecond
	client, err := prismic.New(cfg)
	if err != nil {
		t.Fatalf("prismic.New() error = %v", err)
	}
	defer client.Close()

	first, err := client.FirstPage(context.Background())
	if err != nil {
		t.Fatalf("FirstPage() error = %v", err)
	}
	srv := newTestServer(client, first)

	w := get(t, srv.Handler(), PostsAPIPath+"?cursor="+url.QueryEscape(first.NextCursor))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].UID != "post-3" || resp.HasMore {
		t.Errorf("resp = %+v", resp)
	}

	requests := mock.GetRequestCount()
	w = get(t, srv.Handler(), PostsAPIPath+"?cursor="+url.QueryEscape("https://example.com/api/v2/documents/search?ref=x"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("foreign cursor status = %d, want 400", w.Code)
	}
	if mock.GetRequestCount() != requests {
		t.Error("foreign cursor reached the network")
	}
}

func TestServer_PostsUpstreamTimeout(t *testing.T) {
	mock := testutil.NewMockPrismic(testutil.Posts(3)...)
	defer mock.Close()

	cfg := prismic.DefaultConfig(mock.Endpoint())
	cfg.InitialBackoff = time.Millisecond
	client, err := prismic.New(cfg)
	if err != nil {
		t.Fatalf("prismic.New() error = %v", err)
	}
	defer client.Close()

	first, err := client.FirstPage(context.Background())
	if err != nil {
		t.Fatalf("FirstPage() error = %v", err)
	}
	mock.SetHandler("/api/v2/documents/search", func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	srv := NewServer(ServerConfig{
		Home:           first,
		Source:         client,
		RequestTimeout: 100 * time.Millisecond,
	}, zerolog.Nop())

	w := get(t, srv.Handler(), PostsAPIPath+"?cursor="+url.QueryEscape(first.NextCursor))
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504, body = %s", w.Code, w.Body.String())
	}
}
