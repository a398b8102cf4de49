// Package testutil provides an httptest mock of the upstream government
// APIs for client, source and end-to-end tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of a paginated government API (the
// Congress.gov/GovInfo response shapes).
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount   int
	LastQuery      map[string]string
	LastUserAgent  string
	MissingAPIKeys int
}

// NewMockAPI creates a mock server. Paths without a registered handler get
// a 404.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastUserAgent = r.Header.Get("User-Agent")
		mock.LastQuery = make(map[string]string)
		for k := range r.URL.Query() {
			mock.LastQuery[k] = r.URL.Query().Get(k)
		}
		if r.URL.Query().Get("api_key") == "" {
			mock.MissingAPIKeys++
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears the tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
	m.LastUserAgent = ""
	m.MissingAPIKeys = 0
}

// SetHandler registers a custom handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse registers a canned response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
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
	})
}

// GetRequestCount returns the number of requests the server has seen.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// ServeBills registers a paginated Congress.gov bill listing for the given
// congress: offset/limit pagination with a pagination.count envelope. The
// bills slice is served live, so tests can mutate entries between runs.
func (m *MockAPI) ServeBills(congress int, bills *[]map[string]any, mu *sync.Mutex) {
	path := fmt.Sprintf("/bill/%d", congress)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 250
		}

		mu.Lock()
		all := *bills
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		var page []map[string]any
		if offset < len(all) {
			page = all[offset:end]
		}
		body := map[string]any{
			"bills":      page,
			"pagination": map[string]any{"count": len(all)},
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})
}

// ServeCollection registers a paginated GovInfo collection listing plus the
// matching per-package summary endpoints. Summaries are keyed by packageId;
// a listed package with no summary returns 404.
func (m *MockAPI) ServeCollection(collection, since string, packages []map[string]any, summaries map[string]string) {
	path := fmt.Sprintf("/collections/%s/%s", collection, since)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		if pageSize <= 0 {
			pageSize = 100
		}

		end := offset + pageSize
		if end > len(packages) {
			end = len(packages)
		}
		var page []map[string]any
		if offset < len(packages) {
			page = packages[offset:end]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":    len(packages),
			"packages": page,
		})
	})

	for _, pkg := range packages {
		id, _ := pkg["packageId"].(string)
		summary, ok := summaries[id]
		if !ok {
			continue
		}
		m.SetResponse(fmt.Sprintf("/packages/%s/summary", id), MockResponse{
			StatusCode: http.StatusOK,
			Body:       summary,
			Headers:    map[string]string{"Content-Type": "application/json"},
		})
	}
}

// MakeBills builds n listing entries shaped like Congress.gov bill items.
func MakeBills(congress, n int) []map[string]any {
	bills := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		bills = append(bills, map[string]any{
			"congress":   congress,
			"type":       "HR",
			"number":     strconv.Itoa(1000 + i),
			"title":      fmt.Sprintf("An Act concerning matter %d", i),
			"updateDate": "2026-01-02",
		})
	}
	return bills
}

// MakePackages builds n listing entries shaped like GovInfo package items.
func MakePackages(collection string, n int) []map[string]any {
	pkgs := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		pkgs = append(pkgs, map[string]any{
			"packageId":    fmt.Sprintf("%s-118hr%dih", collection, 1000+i),
			"lastModified": "2026-01-02T00:00:00Z",
		})
	}
	return pkgs
}
