package scheduler

import (
	"math/rand"
	"time"
)

// RetryPolicy controls per-chunk retry behavior. It is injected into the
// scheduler so retry semantics stay testable in isolation.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts per chunk, including
	// the initial request.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Backoff returns the jittered delay to wait after the given failed attempt
// (1-based). The base delay grows exponentially and is capped at MaxBackoff;
// jitter spreads it across ±20% to avoid synchronized retries.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= p.Multiplier
		if backoff >= float64(p.MaxBackoff) {
			backoff = float64(p.MaxBackoff)
			break
		}
	}
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	return time.Duration(backoff * (0.8 + rand.Float64()*0.4))
}
