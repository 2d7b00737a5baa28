package entities

import (
	"time"

	"gorm.io/datatypes"
)

// File represents the persisted file metadata shared with the upload API.
// Variants is a JSON array written atomically together with the ready status.
type File struct {
	ID               string `gorm:"type:varchar(40);primaryKey"`
	UserID           string `gorm:"type:varchar(64);not null;index"`
	OriginalFilename string `gorm:"type:varchar(255);not null"`
	MimeType         string `gorm:"type:varchar(64);not null"`
	SizeBytes        int64  `gorm:"not null"`
	StorageKey       string `gorm:"type:varchar(255);not null"`
	Status           string `gorm:"type:varchar(32);not null;index"`
	Variants         datatypes.JSON
	DeletedAt        *time.Time `gorm:"index"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
}

func (File) TableName() string {
	return "files"
}
