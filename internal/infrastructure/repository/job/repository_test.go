package job

import (
	"testing"
	"time"

	domain "cdn-server/services/cdn-worker/internal/domain/job"
)

func TestClaimDenialOutcome(t *testing.T) {
	freshLock := time.Now().Add(-time.Minute)

	tests := []struct {
		name     string
		job      *domain.Job
		expected domain.ClaimOutcome
	}{
		{
			"completed job is terminal",
			&domain.Job{Status: domain.StatusCompleted},
			domain.ClaimDeniedTerminal,
		},
		{
			"failed job is terminal",
			&domain.Job{Status: domain.StatusFailed, AttemptCount: 3, MaxAttempts: 3},
			domain.ClaimDeniedTerminal,
		},
		{
			"freshly locked job is locked",
			&domain.Job{Status: domain.StatusProcessing, LockedAt: &freshLock, AttemptCount: 1, MaxAttempts: 3},
			domain.ClaimDeniedLocked,
		},
		{
			// A crash on the final attempt leaves PROCESSING at max
			// attempts. That is not terminal: the message must stay on the
			// queue so a later claim can drive the job to FAILED.
			"locked job at max attempts is still locked, not terminal",
			&domain.Job{Status: domain.StatusProcessing, LockedAt: &freshLock, AttemptCount: 3, MaxAttempts: 3},
			domain.ClaimDeniedLocked,
		},
		{
			"retryable job at max attempts is not terminal",
			&domain.Job{Status: domain.StatusFailedRetryable, AttemptCount: 3, MaxAttempts: 3},
			domain.ClaimDeniedLocked,
		},
		{
			"missing record is locked",
			nil,
			domain.ClaimDeniedLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := claimDenialOutcome(tt.job); got != tt.expected {
				t.Errorf("claimDenialOutcome() = %v, want %v", got, tt.expected)
			}
		})
	}
}
