package scheduler

import (
	"testing"
	"time"
)

func TestBackoff_ExponentialGrowth(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}

	// Base delays double per attempt; jitter stays within ±20%.
	wantBase := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}

	for i, base := range wantBase {
		attempt := i + 1
		got := policy.Backoff(attempt)

		min := time.Duration(float64(base) * 0.8)
		max := time.Duration(float64(base) * 1.2)
		if got < min || got > max {
			t.Errorf("Backoff(%d) = %v, want within [%v, %v]", attempt, got, min, max)
		}
	}
}

func TestBackoff_Capped(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    10,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}

	got := policy.Backoff(9)
	max := time.Duration(float64(5*time.Second) * 1.2)
	if got > max {
		t.Errorf("Backoff(9) = %v, exceeds cap with jitter %v", got, max)
	}
}

func TestBackoff_InvalidAttempt(t *testing.T) {
	policy := DefaultRetryPolicy()

	got := policy.Backoff(0)
	min := time.Duration(float64(policy.InitialBackoff) * 0.8)
	max := time.Duration(float64(policy.InitialBackoff) * 1.2)
	if got < min || got > max {
		t.Errorf("Backoff(0) = %v, want within [%v, %v]", got, min, max)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", policy.InitialBackoff)
	}
	if policy.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", policy.MaxBackoff)
	}
}
