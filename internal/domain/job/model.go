package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Type identifies the kind of work a job carries.
type Type string

const (
	TypeProcessFile Type = "process_file"
	TypeDeleteFile  Type = "delete_file"
)

// Status is a job's position in its state machine.
type Status string

const (
	StatusQueued          Status = "QUEUED"
	StatusProcessing      Status = "PROCESSING"
	StatusCompleted       Status = "COMPLETED"
	StatusFailedRetryable Status = "FAILED_RETRYABLE"
	StatusFailed          Status = "FAILED"
)

// DefaultMaxAttempts bounds claims per job before it goes terminal.
const DefaultMaxAttempts = 3

// DefaultLockStaleness is how old a PROCESSING lock must be before another
// worker may steal it. Covers crashed workers.
const DefaultLockStaleness = 10 * time.Minute

// ErrInvalidTransition marks a state change the machine does not allow.
// Requesting one is a programming error, not a runtime condition.
var ErrInvalidTransition = errors.New("invalid job status transition")

var allowedTransitions = map[Status][]Status{
	StatusQueued:          {StatusProcessing},
	StatusProcessing:      {StatusCompleted, StatusFailedRetryable, StatusFailed},
	StatusFailedRetryable: {StatusProcessing, StatusFailed},
	StatusCompleted:       {},
	StatusFailed:          {},
}

// ValidTransition reports whether from -> to is in the transition table.
func ValidTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses from which to is reachable.
func TransitionSources(to Status) []Status {
	var sources []Status
	for from, nexts := range allowedTransitions {
		for _, next := range nexts {
			if next == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// AssertTransition returns ErrInvalidTransition when from -> to is not allowed.
func AssertTransition(from, to Status) error {
	if !ValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Job is the durable record of one unit of asynchronous work.
type Job struct {
	ID            string     `json:"job_id"`
	Type          Type       `json:"type"`
	Status        Status     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	MaxAttempts   int        `json:"max_attempts"`
	LastError     string     `json:"last_error"`
	LastErrorType string     `json:"last_error_type"`
	LockedAt      *time.Time `json:"locked_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Terminal reports whether the job can never be claimed again.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Claimable reports whether a worker may take the job at now. A PROCESSING
// job is claimable once its lock is older than staleness; COMPLETED and
// FAILED never are. The ledger's claim statement encodes the same predicate.
func (j *Job) Claimable(now time.Time, staleness time.Duration) bool {
	switch j.Status {
	case StatusQueued, StatusFailedRetryable:
		return true
	case StatusProcessing:
		return j.LockedAt == nil || j.LockedAt.Before(now.Add(-staleness))
	default:
		return false
	}
}

// ClaimOutcome is the result of a claim attempt. NOT_CLAIMED splits into two
// cases because the consumer acks terminal jobs but leaves locked ones to the
// queue's redelivery.
type ClaimOutcome int

const (
	ClaimGranted ClaimOutcome = iota
	ClaimDeniedLocked
	ClaimDeniedTerminal
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimGranted:
		return "claimed"
	case ClaimDeniedLocked:
		return "locked"
	case ClaimDeniedTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Ledger owns the durable job record and its state machine.
type Ledger interface {
	// Claim atomically moves the job into PROCESSING with a fresh lock and
	// an incremented attempt count, creating the record on first sight.
	// ClaimDenied* outcomes are expected under redelivery, not errors.
	Claim(ctx context.Context, jobID string, jobType Type) (ClaimOutcome, error)

	// UpdateStatus writes a valid next state. An invalid transition fails
	// with ErrInvalidTransition.
	UpdateStatus(ctx context.Context, jobID string, status Status) error

	// RecordFailure writes the diagnostic error fields without touching
	// status.
	RecordFailure(ctx context.Context, jobID, message, kind string) error

	MaxAttemptsReached(ctx context.Context, jobID string) (bool, error)

	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, jobID string) (*Job, error)
}
