package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"cdn-server/services/cdn-worker/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes for the files and jobs tables.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&entities.File{}, &entities.Job{}); err != nil {
		return err
	}
	log.Info().Msg("applied file and job ledger migrations")
	return nil
}
