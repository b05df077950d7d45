// Package ratelimit paces outbound registry requests and honors server
// rate-limit signals. All fetch workers share one Limiter, so a 429 with a
// Retry-After header holds the whole pool until the window reopens instead
// of letting each worker burn retry budget against a closed door.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitHoldsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_rate_limit_holds_total",
		Help: "Total number of waits extended by a Retry-After hold",
	})
)

// Limiter combines steady client-side pacing with a server-driven hold.
// A nil *Limiter is valid and imposes no pacing.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu        sync.Mutex
	holdUntil time.Time
}

// New creates a Limiter allowing rps requests per second with the given
// burst. rps <= 0 returns nil (no pacing).
func New(rps float64, burst int, logger zerolog.Logger) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Wait blocks until the caller may issue a request: first past any active
// Retry-After hold, then through the token bucket. Respects context
// cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	hold := time.Until(l.holdUntil)
	l.mu.Unlock()

	if hold > 0 {
		rateLimitHoldsTotal.Inc()
		l.logger.Warn().
			Dur("hold", hold).
			Msg("Rate limit hold active - waiting before request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hold):
		}
	}

	return l.limiter.Wait(ctx)
}

// UpdateFromHeaders inspects a rate-limited response for a Retry-After
// header (seconds or HTTP-date) and extends the hold accordingly. Responses
// without the header leave the hold unchanged.
func (l *Limiter) UpdateFromHeaders(headers http.Header) {
	if l == nil {
		return
	}

	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return
	}

	var until time.Time
	if secs, err := strconv.Atoi(retryAfter); err == nil {
		until = time.Now().Add(time.Duration(secs) * time.Second)
	} else if t, err := http.ParseTime(retryAfter); err == nil {
		until = t
	} else {
		l.logger.Warn().
			Str("retry_after", retryAfter).
			Msg("Unparseable Retry-After header ignored")
		return
	}

	l.mu.Lock()
	if until.After(l.holdUntil) {
		l.holdUntil = until
	}
	l.mu.Unlock()

	l.logger.Warn().
		Time("hold_until", until).
		Msg("Registry requested backoff - holding all workers")
}

// HoldRemaining returns the time left on the current hold, zero if none.
func (l *Limiter) HoldRemaining() time.Duration {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := time.Until(l.holdUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}
