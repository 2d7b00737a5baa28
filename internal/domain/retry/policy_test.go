package retry_test

import (
	"testing"
	"time"

	"cdn-server/services/cdn-worker/internal/domain/retry"
)

func TestPolicy_ComputeDelay(t *testing.T) {
	policy := retry.DefaultPolicy()

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "attempt 1", attempt: 1, expected: 5 * time.Second},
		{name: "attempt 2", attempt: 2, expected: 10 * time.Second},
		{name: "attempt 3", attempt: 3, expected: 20 * time.Second},
		{name: "attempt 4", attempt: 4, expected: 40 * time.Second},
		{name: "attempt 7 capped", attempt: 7, expected: 5 * time.Minute},
		{name: "attempt 10 capped", attempt: 10, expected: 5 * time.Minute},
		{name: "huge attempt capped", attempt: 500, expected: 5 * time.Minute},
		{name: "attempt 0", attempt: 0, expected: 0},
		{name: "negative attempt", attempt: -3, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.ComputeDelay(tt.attempt); got != tt.expected {
				t.Errorf("Policy.ComputeDelay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestPolicy_ComputeDelayMonotone(t *testing.T) {
	policy := retry.DefaultPolicy()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		got := policy.ComputeDelay(attempt)
		if got < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, got, prev)
		}
		prev = got
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy := retry.DefaultPolicy()

	if policy.BaseDelay != 5*time.Second {
		t.Errorf("DefaultPolicy().BaseDelay = %v, want 5s", policy.BaseDelay)
	}
	if policy.MaxDelay != 5*time.Minute {
		t.Errorf("DefaultPolicy().MaxDelay = %v, want 5m", policy.MaxDelay)
	}
}
