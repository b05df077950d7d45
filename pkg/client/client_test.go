package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ipharvest/trademark-harvester/pkg/daterange"
	"github.com/ipharvest/trademark-harvester/pkg/ratelimit"
)

func testChunk(t *testing.T, start, end string) daterange.Chunk {
	t.Helper()
	r, err := daterange.Parse(start, end)
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}
	return daterange.Chunk{Range: r}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
		},
		{
			name:        "missing base URL",
			config:      Config{UserAgent: "x/1.0"},
			expectError: true,
		},
		{
			name:        "missing user agent",
			config:      Config{BaseURL: DefaultBaseURL},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.expectError && err == nil {
				t.Error("New succeeded, want error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("New failed: %v", err)
			}
		})
	}
}

func TestFetchChunk_SinglePage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count": 2, "items": [
			{"applicationNum": "A1", "documents": [{"fileName": "a.jpg", "url": "https://x/a"}]},
			{"applicationNum": "A2"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01"))
	if err != nil {
		t.Fatalf("FetchChunk failed: %v", err)
	}

	if gotQuery != "lodgement_date=2020-01-01" {
		t.Errorf("query = %q, want lodgement_date=2020-01-01", gotQuery)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ApplicationNum != "A1" || records[1].ApplicationNum != "A2" {
		t.Errorf("record order = %s, %s", records[0].ApplicationNum, records[1].ApplicationNum)
	}
}

func TestFetchChunk_MultiDayQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"count": 0, "items": []}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-07")); err != nil {
		t.Fatalf("FetchChunk failed: %v", err)
	}

	want := "lodgement_date_from=2020-01-01&lodgement_date_to=2020-01-07"
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}

func TestFetchChunk_FollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 3, "items": [{"applicationNum": "P1"}], "links": {"next": "/page2"}}`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 3, "items": [{"applicationNum": "P2"}], "links": {"next": "/page3"}}`)
	})
	mux.HandleFunc("/page3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 3, "items": [{"applicationNum": "P3"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01"))
	if err != nil {
		t.Fatalf("FetchChunk failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range []string{"P1", "P2", "P3"} {
		if records[i].ApplicationNum != want {
			t.Errorf("records[%d] = %s, want %s (pagination order lost)", i, records[i].ApplicationNum, want)
		}
	}
}

func TestFetchChunk_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantClass ErrorClass
		wantAuth  bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error": "slow down"}`, ErrorClassRateLimited, false},
		{"server error", http.StatusInternalServerError, `{"error": "boom"}`, ErrorClassServer, false},
		{"not found", http.StatusNotFound, `{"error": "no such"}`, ErrorClassClient, false},
		{"unauthorized", http.StatusUnauthorized, `{"error": "bad key"}`, ErrorClassClient, true},
		{"forbidden", http.StatusForbidden, `{"error": "denied"}`, ErrorClassClient, true},
		{"malformed body", http.StatusOK, `{"count": oops`, ErrorClassMalformed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			_, err := c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01"))
			if err == nil {
				t.Fatal("FetchChunk succeeded, want error")
			}
			if got := Classify(err); got != tt.wantClass {
				t.Errorf("class = %q, want %q", got, tt.wantClass)
			}
			if got := errors.Is(err, ErrAuthFailed); got != tt.wantAuth {
				t.Errorf("errors.Is(err, ErrAuthFailed) = %v, want %v", got, tt.wantAuth)
			}
		})
	}
}

func TestFetchChunk_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(t, srv.URL)
	_, err := c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01"))
	if err == nil {
		t.Fatal("FetchChunk succeeded against closed server")
	}
	if got := Classify(err); got != ErrorClassNetwork {
		t.Errorf("class = %q, want %q", got, ErrorClassNetwork)
	}
}

func TestFetchChunk_TimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"count": 0, "items": []}`)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 20 * time.Millisecond
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01"))
	if err == nil {
		t.Fatal("FetchChunk succeeded, want timeout")
	}
	if got := Classify(err); got != ErrorClassNetwork {
		t.Errorf("class = %q, want %q", got, ErrorClassNetwork)
	}
}

func TestFetchChunk_SendsHeaders(t *testing.T) {
	var gotKey, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"count": 0, "items": []}`)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "secret-key"
	cfg.UserAgent = "harvester-test/1.0"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01")); err != nil {
		t.Fatalf("FetchChunk failed: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotUA != "harvester-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestFetchChunk_RateLimitSetsHold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.New(100, 10, zerolog.Nop())
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Limiter = limiter
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.FetchChunk(context.Background(), testChunk(t, "2020-01-01", "2020-01-01"))
	if got := Classify(err); got != ErrorClassRateLimited {
		t.Fatalf("class = %q, want %q", got, ErrorClassRateLimited)
	}
	if limiter.HoldRemaining() <= 0 {
		t.Error("Retry-After did not set a limiter hold")
	}
}
