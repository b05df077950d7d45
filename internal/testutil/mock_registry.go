// Package testutil provides testing utilities for the trademark harvester.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock registry response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRegistry is a configurable mock trademarks endpoint for testing.
type MockRegistry struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	queries           []string
}

// NewMockRegistry creates a new mock registry server.
func NewMockRegistry() *MockRegistry {
	mock := &MockRegistry{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.queries = append(mock.queries, r.URL.RawQuery)
		mock.mu.Unlock()

		key := mock.handlerKey(r)

		mock.mu.RLock()
		handler, exists := mock.handlers[key]
		if !exists {
			handler, exists = mock.handlers[r.URL.Path]
		}
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// handlerKey prefers date-specific handlers over path handlers.
func (m *MockRegistry) handlerKey(r *http.Request) string {
	if date := r.URL.Query().Get("lodgement_date"); date != "" {
		return "date:" + date
	}
	return r.URL.Path
}

// defaultHandler returns an empty result page.
func (m *MockRegistry) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"count": 0, "items": []}`)
}

// URL returns the mock server URL.
func (m *MockRegistry) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRegistry) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockRegistry) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.queries = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockRegistry) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockRegistry) SetResponse(path string, resp MockResponse) {
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

// SetDayRecords serves a single-page result for one lodgement date. Each
// application number becomes one record.
func (m *MockRegistry) SetDayRecords(date string, applicationNums ...string) {
	items := make([]map[string]any, 0, len(applicationNums))
	for _, num := range applicationNums {
		items = append(items, map[string]any{
			"applicationNum": num,
			"markIndex": []map[string]any{
				{"wordsInMark": "MARK " + num},
			},
		})
	}
	body, _ := json.Marshal(map[string]any{
		"count": len(items),
		"items": items,
	})

	m.SetHandler("date:"+date, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}

// SetDayFlaky makes a date fail n times with the given status before
// succeeding with the supplied records.
func (m *MockRegistry) SetDayFlaky(date string, failures int, status int, applicationNums ...string) {
	var mu sync.Mutex
	remaining := failures

	items := make([]map[string]any, 0, len(applicationNums))
	for _, num := range applicationNums {
		items = append(items, map[string]any{"applicationNum": num})
	}
	body, _ := json.Marshal(map[string]any{
		"count": len(items),
		"items": items,
	})

	m.SetHandler("date:"+date, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := remaining > 0
		if fail {
			remaining--
		}
		mu.Unlock()

		if fail {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error": "transient"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockRegistry) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Queries returns the raw query string of every request, in arrival order.
func (m *MockRegistry) Queries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}
