package entities

import "time"

// Job represents the durable job ledger row. JobID comes from the queue
// producer and is stable across redeliveries of the same logical job.
type Job struct {
	JobID         string `gorm:"type:varchar(64);primaryKey"`
	Type          string `gorm:"type:varchar(32);not null"`
	Status        string `gorm:"type:varchar(32);not null;index"`
	AttemptCount  int    `gorm:"not null;default:0"`
	MaxAttempts   int    `gorm:"not null;default:3"`
	LastError     string `gorm:"type:text"`
	LastErrorType string `gorm:"type:varchar(64)"`
	LockedAt      *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}
