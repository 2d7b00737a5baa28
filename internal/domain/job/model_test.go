package job_test

import (
	"errors"
	"testing"
	"time"

	"cdn-server/services/cdn-worker/internal/domain/job"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     job.Status
		to       job.Status
		expected bool
	}{
		{"queued to processing", job.StatusQueued, job.StatusProcessing, true},
		{"processing to completed", job.StatusProcessing, job.StatusCompleted, true},
		{"processing to failed_retryable", job.StatusProcessing, job.StatusFailedRetryable, true},
		{"processing to failed", job.StatusProcessing, job.StatusFailed, true},
		{"failed_retryable to processing", job.StatusFailedRetryable, job.StatusProcessing, true},
		{"failed_retryable to failed", job.StatusFailedRetryable, job.StatusFailed, true},
		{"queued to completed skips processing", job.StatusQueued, job.StatusCompleted, false},
		{"completed is terminal", job.StatusCompleted, job.StatusProcessing, false},
		{"failed is terminal", job.StatusFailed, job.StatusProcessing, false},
		{"completed cannot fail", job.StatusCompleted, job.StatusFailed, false},
		{"processing to queued never happens", job.StatusProcessing, job.StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := job.ValidTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestAssertTransition(t *testing.T) {
	if err := job.AssertTransition(job.StatusQueued, job.StatusProcessing); err != nil {
		t.Fatalf("AssertTransition(queued, processing) = %v, want nil", err)
	}

	err := job.AssertTransition(job.StatusCompleted, job.StatusProcessing)
	if !errors.Is(err, job.ErrInvalidTransition) {
		t.Fatalf("AssertTransition(completed, processing) = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionSources(t *testing.T) {
	sources := job.TransitionSources(job.StatusProcessing)
	want := map[job.Status]bool{job.StatusQueued: true, job.StatusFailedRetryable: true}
	if len(sources) != len(want) {
		t.Fatalf("TransitionSources(PROCESSING) = %v, want sources %v", sources, want)
	}
	for _, s := range sources {
		if !want[s] {
			t.Errorf("unexpected source %s for PROCESSING", s)
		}
	}
}

func TestJob_Terminal(t *testing.T) {
	tests := []struct {
		status   job.Status
		expected bool
	}{
		{job.StatusQueued, false},
		{job.StatusProcessing, false},
		{job.StatusFailedRetryable, false},
		{job.StatusCompleted, true},
		{job.StatusFailed, true},
	}

	for _, tt := range tests {
		j := &job.Job{Status: tt.status}
		if got := j.Terminal(); got != tt.expected {
			t.Errorf("Terminal() with status %s = %v, want %v", tt.status, got, tt.expected)
		}
	}
}

func TestJob_Claimable(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	staleness := 10 * time.Minute
	freshLock := now.Add(-time.Minute)
	staleLock := now.Add(-11 * time.Minute)

	tests := []struct {
		name     string
		job      job.Job
		expected bool
	}{
		{"queued", job.Job{Status: job.StatusQueued}, true},
		{"failed_retryable", job.Job{Status: job.StatusFailedRetryable}, true},
		{"processing with fresh lock", job.Job{Status: job.StatusProcessing, LockedAt: &freshLock}, false},
		{"processing with stale lock", job.Job{Status: job.StatusProcessing, LockedAt: &staleLock}, true},
		{"stale lock at max attempts still claimable", job.Job{Status: job.StatusProcessing, LockedAt: &staleLock, AttemptCount: 3, MaxAttempts: 3}, true},
		{"processing with no lock", job.Job{Status: job.StatusProcessing}, true},
		{"completed", job.Job{Status: job.StatusCompleted, LockedAt: &staleLock}, false},
		{"failed", job.Job{Status: job.StatusFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Claimable(now, staleness); got != tt.expected {
				t.Errorf("Claimable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClaimOutcome_String(t *testing.T) {
	tests := []struct {
		outcome  job.ClaimOutcome
		expected string
	}{
		{job.ClaimGranted, "claimed"},
		{job.ClaimDeniedLocked, "locked"},
		{job.ClaimDeniedTerminal, "terminal"},
		{job.ClaimOutcome(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.expected {
			t.Errorf("ClaimOutcome(%d).String() = %q, want %q", tt.outcome, got, tt.expected)
		}
	}
}
