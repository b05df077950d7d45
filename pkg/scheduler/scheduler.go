// Package scheduler runs chunk fetches under a bounded worker pool and
// reassembles results in chronological order.
//
// Each chunk moves through Pending → InFlight → {Succeeded, Failed,
// Retrying}. Workers pull chunks from a shared channel, so admission is a
// sliding window: a finishing chunk immediately frees a slot for the next
// pending one. Results land in a slice slot indexed by the chunk's position
// in the original sequence, which makes the output chronological no matter
// how network completion interleaves.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ipharvest/trademark-harvester/pkg/client"
	"github.com/ipharvest/trademark-harvester/pkg/daterange"
	"github.com/ipharvest/trademark-harvester/pkg/logging"
	"github.com/ipharvest/trademark-harvester/pkg/registry"
)

// Prometheus metrics for chunk scheduling.
var (
	chunksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_chunks_in_flight",
		Help: "Number of chunk fetches currently running",
	})

	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_chunks_total",
		Help: "Total chunks by terminal state",
	}, []string{"state"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retries_total",
		Help: "Total number of chunk retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_retry_backoff_seconds",
		Help:    "Backoff duration for chunk retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})
)

// State is a chunk's position in its lifecycle.
type State string

const (
	// StatePending means the chunk has not been admitted yet.
	StatePending State = "pending"

	// StateInFlight means a fetch attempt is running.
	StateInFlight State = "in_flight"

	// StateRetrying means the chunk is waiting out a backoff delay.
	StateRetrying State = "retrying"

	// StateSucceeded is terminal: records were fetched.
	StateSucceeded State = "succeeded"

	// StateFailed is terminal: retries exhausted or a non-transient error.
	StateFailed State = "failed"
)

// Fetcher performs a single fetch attempt for one chunk.
// *client.Client satisfies this.
type Fetcher interface {
	FetchChunk(ctx context.Context, chunk daterange.Chunk) ([]registry.Record, error)
}

// Config controls scheduler behavior.
type Config struct {
	// Concurrency is the maximum number of chunks in flight at once.
	Concurrency int
}

// Scheduler drives chunk fetches to completion.
type Scheduler struct {
	fetcher Fetcher
	policy  RetryPolicy
	cfg     Config
	logger  zerolog.Logger
}

// New constructs a Scheduler.
func New(fetcher Fetcher, policy RetryPolicy, cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Scheduler{
		fetcher: fetcher,
		policy:  policy,
		cfg:     cfg,
		logger:  logging.NewLogger("scheduler"),
	}
}

// Run fetches every chunk and returns one FetchResult per chunk, ordered by
// chunk index. Individual chunk failures are recorded in their result and do
// not abort the run. A fatal error (authentication rejection, or context
// cancellation) aborts remaining work and returns an error instead of
// partial results.
func (s *Scheduler) Run(ctx context.Context, chunks []daterange.Chunk) ([]registry.FetchResult, error) {
	if len(chunks) == 0 {
		return []registry.FetchResult{}, nil
	}

	start := time.Now()
	s.logger.Info().
		Int("chunks", len(chunks)).
		Int("concurrency", s.cfg.Concurrency).
		Msg("Starting chunk fetch run")

	results := make([]registry.FetchResult, len(chunks))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalMu sync.Mutex
	var fatalErr error

	jobs := make(chan daterange.Chunk)
	go func() {
		defer close(jobs)
		for _, chunk := range chunks {
			select {
			case jobs <- chunk:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				if runCtx.Err() != nil {
					return
				}
				res := s.harvestChunk(runCtx, chunk)
				results[chunk.Index] = res

				if errors.Is(res.Err, client.ErrAuthFailed) {
					fatalMu.Lock()
					if fatalErr == nil {
						fatalErr = res.Err
					}
					fatalMu.Unlock()
					cancel()
					return
				}
			}
		}()
	}

	wg.Wait()

	if fatalErr != nil {
		s.logger.Error().Err(fatalErr).Msg("Run aborted by fatal registry error")
		return nil, fmt.Errorf("fatal registry error: %w", fatalErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	s.logger.Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Chunk fetch run complete")

	return results, nil
}

// harvestChunk drives one chunk to a terminal state, applying the retry
// policy across attempts.
func (s *Scheduler) harvestChunk(ctx context.Context, chunk daterange.Chunk) registry.FetchResult {
	var lastErr error

	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		chunksInFlight.Inc()
		items, err := s.fetcher.FetchChunk(ctx, chunk)
		chunksInFlight.Dec()

		if err == nil {
			if attempt > 1 {
				s.logger.Info().
					Str("chunk", chunk.Label()).
					Int("attempt", attempt).
					Msg("Chunk succeeded after retry")
			}
			if items == nil {
				items = []registry.Record{}
			}
			chunksTotal.WithLabelValues(string(StateSucceeded)).Inc()
			s.logger.Info().
				Str("chunk", chunk.Label()).
				Int("records", len(items)).
				Msg("Chunk fetched")
			return registry.FetchResult{
				Date:  chunk.Label(),
				Count: len(items),
				Items: items,
			}
		}

		lastErr = err

		if errors.Is(err, client.ErrAuthFailed) {
			break
		}

		class := client.Classify(err)
		if !client.IsTransient(class) {
			s.logger.Error().
				Err(err).
				Str("chunk", chunk.Label()).
				Str("error_class", string(class)).
				Msg("Chunk failed with non-transient error")
			break
		}
		if attempt >= s.policy.MaxAttempts {
			s.logger.Error().
				Err(err).
				Str("chunk", chunk.Label()).
				Int("max_attempts", s.policy.MaxAttempts).
				Msg("Chunk retry attempts exhausted")
			break
		}

		backoff := s.policy.Backoff(attempt)
		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(backoff.Seconds())

		s.logger.Warn().
			Str("chunk", chunk.Label()).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying chunk after backoff")

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = s.policy.MaxAttempts // no further attempts
		case <-time.After(backoff):
		}
	}

	chunksTotal.WithLabelValues(string(StateFailed)).Inc()
	return registry.FetchResult{
		Date:  chunk.Label(),
		Count: 0,
		Items: []registry.Record{},
		Err:   lastErr,
	}
}
