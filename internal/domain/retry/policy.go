// Package retry defines the backoff policy for failed jobs.
package retry

import (
	"math"
	"time"
)

// Policy maps an attempt count to a backoff delay. The delay is advisory:
// it determines when a FAILED_RETRYABLE job should become eligible again,
// while actual redelivery timing is owned by the queue transport.
type Policy struct {
	BaseDelay time.Duration `json:"base_delay"`
	MaxDelay  time.Duration `json:"max_delay"`
}

// DefaultPolicy returns the production backoff: 5s doubling per attempt,
// capped at 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: 5 * time.Second,
		MaxDelay:  5 * time.Minute,
	}
}

// ComputeDelay calculates the delay after the given claim attempt:
// base * 2^(attempt-1), capped at MaxDelay. Pure and deterministic.
func (p Policy) ComputeDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	// Past this exponent the uncapped value exceeds any sane MaxDelay.
	exponent := float64(attempt - 1)
	if exponent > 30 {
		return p.MaxDelay
	}

	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, exponent))
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay
}
