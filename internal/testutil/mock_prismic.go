// Package testutil provides testing utilities for the blog feed.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MasterRef is the content ref served by MockPrismic.
const MasterRef = "YEoUJxEAACEAhJxp"

// Document is a post document served by MockPrismic.
type Document struct {
	ID       string
	UID      string
	Type     string
	Title    string
	Subtitle string
	Author   string

	// FirstPublicationDate is sent as JSON null when nil.
	FirstPublicationDate *string
}

// MockResponse is a canned response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPrismic is a configurable fake of the Prismic REST API v2.
type MockPrismic struct {
	server *httptest.Server

	mu        sync.RWMutex
	documents []Document
	handlers  map[string]http.HandlerFunc
	failures  []MockResponse

	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	LastQuery         url.Values
}

// NewMockPrismic starts a mock Prismic repository serving docs.
func NewMockPrismic(docs ...Document) *MockPrismic {
	mock := &MockPrismic{
		documents: docs,
		handlers:  make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.Query()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}

		var failure *MockResponse
		if len(mock.failures) > 0 {
			f := mock.failures[0]
			mock.failures = mock.failures[1:]
			failure = &f
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		switch {
		case failure != nil:
			writeMockResponse(w, *failure)
		case exists:
			handler(w, r)
		case r.URL.Path == "/api/v2":
			mock.apiHandler(w, r)
		case r.URL.Path == "/api/v2/documents/search":
			mock.searchHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockPrismic) URL() string {
	return m.server.URL
}

// Endpoint returns the API entry point, as configured for a real repository.
func (m *MockPrismic) Endpoint() string {
	return m.server.URL + "/api/v2"
}

// Close shuts down the mock server.
func (m *MockPrismic) Close() {
	m.server.Close()
}

// Reset clears the tracking counters.
func (m *MockPrismic) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetHandler overrides the handler for path.
func (m *MockPrismic) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse serves a canned response for path.
func (m *MockPrismic) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, _ *http.Request) {
		writeMockResponse(w, resp)
	})
}

// FailNext answers the next len(resps) requests, on any path, with resps.
func (m *MockPrismic) FailNext(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, resps...)
}

// GetRequestCount returns the number of requests received.
func (m *MockPrismic) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests received.
func (m *MockPrismic) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastQuery returns the query of the most recent request.
func (m *MockPrismic) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastHeader returns the headers of the most recent request.
func (m *MockPrismic) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func writeMockResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func (m *MockPrismic) apiHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=5")
	fmt.Fprintf(w, `{"refs":[{"id":"master","ref":%q,"label":"Master","isMasterRef":true}],"types":{"post":"Post"},"version":"mock"}`, MasterRef)
}

func (m *MockPrismic) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("ref") == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"ref parameter is required"}`))
		return
	}

	pageSize := 20
	if v, err := strconv.Atoi(q.Get("pageSize")); err == nil && v > 0 {
		pageSize = v
	}
	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}

	m.mu.RLock()
	docs := make([]Document, len(m.documents))
	copy(docs, m.documents)
	m.mu.RUnlock()

	totalPages := (len(docs) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(docs) {
		start = len(docs)
	}
	if end > len(docs) {
		end = len(docs)
	}

	results := make([]map[string]any, 0, end-start)
	for _, d := range docs[start:end] {
		docType := d.Type
		if docType == "" {
			docType = "post"
		}
		var uid any
		if d.UID != "" {
			uid = d.UID
		}
		var published any
		if d.FirstPublicationDate != nil {
			published = *d.FirstPublicationDate
		}
		results = append(results, map[string]any{
			"id":                     d.ID,
			"uid":                    uid,
			"type":                   docType,
			"first_publication_date": published,
			"last_publication_date":  published,
			"data": map[string]any{
				"title":    d.Title,
				"subtitle": d.Subtitle,
				"author":   d.Author,
			},
		})
	}

	var nextPage any
	if page < totalPages {
		next := *r.URL
		nq := next.Query()
		nq.Set("page", strconv.Itoa(page+1))
		next.RawQuery = nq.Encode()
		nextPage = m.server.URL + next.RequestURI()
	}

	body := map[string]any{
		"page":               page,
		"results_per_page":   pageSize,
		"results_size":       len(results),
		"total_results_size": len(docs),
		"total_pages":        totalPages,
		"next_page":          nextPage,
		"prev_page":          nil,
		"results":            results,
	}

	etag := fmt.Sprintf(`"%s-%d-%d"`, MasterRef, page, pageSize)
	w.Header().Set("Cache-Control", "max-age=60")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// Posts returns n sequential post documents ("post-1".."post-n").
func Posts(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		date := time.Date(2021, 3, 1+i, 19, 25, 28, 0, time.UTC).Format("2006-01-02T15:04:05-0700")
		docs[i] = Document{
			ID:                   fmt.Sprintf("YEoT%04d", i+1),
			UID:                  fmt.Sprintf("post-%d", i+1),
			Title:                fmt.Sprintf("Post %d", i+1),
			Subtitle:             fmt.Sprintf("Subtitle %d", i+1),
			Author:               "Joseph Oliveira",
			FirstPublicationDate: &date,
		}
	}
	return docs
}

// NewTooManyRequestsResponse returns a 429 with Retry-After.
func NewTooManyRequestsResponse(retryAfter int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too many requests"}`,
		Headers: map[string]string{
			"Retry-After":  strconv.Itoa(retryAfter),
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse returns a 500.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse returns a 404.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"message":"Not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
