package job

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "cdn-server/services/cdn-worker/internal/domain/job"
	"cdn-server/services/cdn-worker/internal/infrastructure/database/entities"
	"cdn-server/services/cdn-worker/internal/infrastructure/metrics"
)

// Repository implements the job ledger against the shared store. All state
// changes are single conditional statements gated on rows affected, so any
// number of worker processes can race on the same job id safely.
type Repository struct {
	db            *gorm.DB
	maxAttempts   int
	lockStaleness time.Duration
}

func NewRepository(db *gorm.DB, maxAttempts int, lockStaleness time.Duration) *Repository {
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if lockStaleness <= 0 {
		lockStaleness = domain.DefaultLockStaleness
	}
	return &Repository{
		db:            db,
		maxAttempts:   maxAttempts,
		lockStaleness: lockStaleness,
	}
}

const claimSQL = `
INSERT INTO jobs (job_id, type, status, attempt_count, max_attempts, last_error, last_error_type, locked_at, created_at, updated_at)
VALUES (?, ?, 'PROCESSING', 1, ?, '', '', NOW(), NOW(), NOW())
ON CONFLICT (job_id) DO UPDATE
SET status = 'PROCESSING',
    locked_at = NOW(),
    updated_at = NOW(),
    attempt_count = jobs.attempt_count + 1
WHERE jobs.status IN ('QUEUED', 'FAILED_RETRYABLE')
   OR (jobs.status = 'PROCESSING' AND jobs.locked_at < NOW() - ?::interval)
`

// Claim atomically takes ownership of a job. A job id without a prior record
// is treated as freshly queued. The conditional upsert is the only writer of
// PROCESSING, so two concurrent claims can never both succeed.
func (r *Repository) Claim(ctx context.Context, jobID string, jobType domain.Type) (domain.ClaimOutcome, error) {
	var affected int64
	err := metrics.ObserveDB("job_claim", func() error {
		result := r.db.WithContext(ctx).Exec(
			claimSQL,
			jobID,
			string(jobType),
			r.maxAttempts,
			fmt.Sprintf("%d seconds", int(r.lockStaleness.Seconds())),
		)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return domain.ClaimDeniedLocked, fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if affected > 0 {
		metrics.RecordClaim("claimed")
		return domain.ClaimGranted, nil
	}

	// The condition failed: either another worker holds a fresh lock or the
	// job is terminal. Distinguish so the consumer knows whether to ack.
	current, err := r.Get(ctx, jobID)
	if err != nil {
		return domain.ClaimDeniedLocked, err
	}
	outcome := claimDenialOutcome(current)
	metrics.RecordClaim(outcome.String())
	return outcome, nil
}

// claimDenialOutcome classifies a failed claim condition. Only terminal
// statuses justify acknowledging the message; any non-terminal denial means
// another worker holds a fresh lock, so the message is left for redelivery.
// Exhausted attempts alone never classify as terminal: a crashed worker can
// leave a PROCESSING job at max attempts, and that job must stay claimable
// once its lock goes stale so the retry path can move it to FAILED.
func claimDenialOutcome(current *domain.Job) domain.ClaimOutcome {
	if current != nil && current.Terminal() {
		return domain.ClaimDeniedTerminal
	}
	return domain.ClaimDeniedLocked
}

// UpdateStatus writes a valid next state. The transition table is enforced
// in the WHERE clause so validity is checked atomically with the write.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status domain.Status) error {
	sources := domain.TransitionSources(status)
	if len(sources) == 0 {
		return fmt.Errorf("update job %s: %w: no transition leads to %s", jobID, domain.ErrInvalidTransition, status)
	}
	sourceValues := make([]string, 0, len(sources))
	for _, source := range sources {
		sourceValues = append(sourceValues, string(source))
	}

	var affected int64
	err := metrics.ObserveDB("job_update_status", func() error {
		result := r.db.WithContext(ctx).
			Model(&entities.Job{}).
			Where("job_id = ?", jobID).
			Where("status IN ?", sourceValues).
			Updates(map[string]interface{}{
				"status":     string(status),
				"updated_at": time.Now(),
			})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return fmt.Errorf("update job %s status to %s: %w", jobID, status, err)
	}
	if affected > 0 {
		return nil
	}

	current, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("update job %s status to %s: record not found", jobID, status)
	}
	return fmt.Errorf("update job %s: %w: %s -> %s", jobID, domain.ErrInvalidTransition, current.Status, status)
}

// RecordFailure writes the diagnostic error fields without touching status.
func (r *Repository) RecordFailure(ctx context.Context, jobID, message, kind string) error {
	err := metrics.ObserveDB("job_record_failure", func() error {
		return r.db.WithContext(ctx).
			Model(&entities.Job{}).
			Where("job_id = ?", jobID).
			Updates(map[string]interface{}{
				"last_error":      message,
				"last_error_type": kind,
				"updated_at":      time.Now(),
			}).Error
	})
	if err != nil {
		return fmt.Errorf("record failure for job %s: %w", jobID, err)
	}
	return nil
}

func (r *Repository) MaxAttemptsReached(ctx context.Context, jobID string) (bool, error) {
	current, err := r.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, fmt.Errorf("job %s not found", jobID)
	}
	return current.AttemptCount >= current.MaxAttempts, nil
}

func (r *Repository) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var entity entities.Job
	err := metrics.ObserveDB("job_get", func() error {
		return r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&entity).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	job := mapEntity(entity)
	return &job, nil
}

func mapEntity(entity entities.Job) domain.Job {
	return domain.Job{
		ID:            entity.JobID,
		Type:          domain.Type(entity.Type),
		Status:        domain.Status(entity.Status),
		AttemptCount:  entity.AttemptCount,
		MaxAttempts:   entity.MaxAttempts,
		LastError:     entity.LastError,
		LastErrorType: entity.LastErrorType,
		LockedAt:      entity.LockedAt,
		CreatedAt:     entity.CreatedAt,
		UpdatedAt:     entity.UpdatedAt,
	}
}
