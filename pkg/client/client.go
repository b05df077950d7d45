// Package client performs single-chunk fetches against the IPOS trademarks
// endpoint: query building, transparent pagination, and failure
// classification. Retry belongs to the scheduler, not here; one FetchChunk
// call is one attempt.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ipharvest/trademark-harvester/pkg/cache"
	"github.com/ipharvest/trademark-harvester/pkg/daterange"
	"github.com/ipharvest/trademark-harvester/pkg/logging"
	"github.com/ipharvest/trademark-harvester/pkg/ratelimit"
	"github.com/ipharvest/trademark-harvester/pkg/registry"
)

// Prometheus metrics for registry fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "Total registry requests by outcome",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_request_duration_seconds",
		Help:    "Registry page fetch duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_errors_total",
		Help: "Total registry fetch errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the IPOS trademarks endpoint on data.gov.sg.
const DefaultBaseURL = "https://api.data.gov.sg/v1/technology/ipos/trademarks"

// Config holds the client configuration. It is an explicit value passed at
// construction; the client keeps no process-wide state.
type Config struct {
	// BaseURL is the trademarks endpoint.
	BaseURL string

	// APIKey is sent as the x-api-key header when non-empty.
	APIKey string

	// UserAgent identifies the harvester to the registry.
	UserAgent string

	// Timeout bounds each individual HTTP call. A call exceeding it is a
	// network error, eligible for retry by the scheduler.
	Timeout time.Duration

	// Limiter paces outbound requests; nil disables pacing.
	Limiter *ratelimit.Limiter

	// Cache serves repeat chunk pages without network calls; nil disables.
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "trademark-harvester/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// Client fetches trademark records for date-range chunks.
type Client struct {
	httpClient *http.Client
	config     Config
	base       *url.URL
	logger     zerolog.Logger
}

// New creates a registry client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		base:   base,
		logger: logging.NewLogger("client"),
	}, nil
}

// pageEnvelope is the wire shape of one response page.
type pageEnvelope struct {
	Count int               `json:"count"`
	Items []registry.Record `json:"items"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// FetchChunk retrieves all records whose lodgement date falls inside the
// chunk, following pagination transparently and preserving the registry's
// item order. Exactly one attempt; the returned error is classified via
// Classify.
func (c *Client) FetchChunk(ctx context.Context, chunk daterange.Chunk) ([]registry.Record, error) {
	pageURL := c.chunkURL(chunk.Range)

	var items []registry.Record
	for page := 1; pageURL != ""; page++ {
		body, err := c.fetchPage(ctx, chunk.Range, page, pageURL)
		if err != nil {
			return nil, err
		}

		var env pageEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
			return nil, &APIError{
				Class:   ErrorClassMalformed,
				Message: fmt.Sprintf("parse page %d for %s", page, chunk.Label()),
				Err:     err,
			}
		}

		items = append(items, env.Items...)

		next, err := c.resolveNext(env.Links.Next)
		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
			return nil, &APIError{
				Class:   ErrorClassMalformed,
				Message: fmt.Sprintf("pagination link on page %d for %s", page, chunk.Label()),
				Err:     err,
			}
		}
		if next != "" {
			c.logger.Debug().
				Str("chunk", chunk.Label()).
				Int("page", page+1).
				Msg("Following pagination link")
		}
		pageURL = next
	}

	c.logger.Debug().
		Str("chunk", chunk.Label()).
		Int("records", len(items)).
		Msg("Chunk fetched")

	return items, nil
}

// fetchPage retrieves one page body, via cache when possible.
func (c *Client) fetchPage(ctx context.Context, r daterange.Range, page int, pageURL string) ([]byte, error) {
	key := cache.ChunkKey(r, page)

	if c.config.Cache != nil {
		entry, err := c.config.Cache.Get(ctx, key)
		if err == nil {
			requestsTotal.WithLabelValues("cache_hit").Inc()
			c.logger.Debug().
				Str("key", key.String()).
				Dur("age", entry.Age()).
				Msg("Serving page from cache")
			return entry.Data, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
	}

	if err := c.config.Limiter.Wait(ctx); err != nil {
		return nil, &APIError{Class: ErrorClassNetwork, Message: "rate limiter wait", Err: err}
	}

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &APIError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{Class: ErrorClassNetwork, Message: "read response body", Err: err}
	}

	if c.config.Cache != nil {
		entry := &cache.Entry{Data: body, FetchedAt: time.Now()}
		if err := c.config.Cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
		}
	}

	return body, nil
}

// statusError builds the classified error for a non-200 response.
func (c *Client) statusError(resp *http.Response) error {
	class := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(class)).Inc()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    resp.Status,
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		apiErr.Err = ErrAuthFailed
	case http.StatusTooManyRequests:
		c.config.Limiter.UpdateFromHeaders(resp.Header)
	}

	c.logger.Warn().
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Registry request error")

	return apiErr
}

// chunkURL builds the first-page query for a chunk. Single-day chunks use
// the bare lodgement_date parameter the endpoint documents; wider chunks
// use the from/to pair.
func (c *Client) chunkURL(r daterange.Range) string {
	u := *c.base
	q := u.Query()
	if r.Start.Equal(r.End) {
		q.Set("lodgement_date", r.Start.Format(daterange.DateLayout))
	} else {
		q.Set("lodgement_date_from", r.Start.Format(daterange.DateLayout))
		q.Set("lodgement_date_to", r.End.Format(daterange.DateLayout))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// resolveNext turns a links.next value into an absolute URL. Empty stays
// empty; relative links resolve against the base endpoint.
func (c *Client) resolveNext(next string) (string, error) {
	if next == "" {
		return "", nil
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", next, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
