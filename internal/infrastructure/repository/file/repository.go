package file

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	domain "cdn-server/services/cdn-worker/internal/domain/file"
	"cdn-server/services/cdn-worker/internal/infrastructure/database/entities"
	"cdn-server/services/cdn-worker/internal/infrastructure/metrics"
)

// Repository implements the file ledger against the shared store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.File, error) {
	var entity entities.File
	err := metrics.ObserveDB("file_get", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	return mapEntity(entity)
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	err := metrics.ObserveDB("file_update_status", func() error {
		result := r.db.WithContext(ctx).
			Model(&entities.File{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     string(status),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update file %s status to %s: %w", id, status, err)
	}
	return nil
}

// AttachVariants writes the variant set and the ready status in one UPDATE
// so a partial set is never visible.
func (r *Repository) AttachVariants(ctx context.Context, id string, variants []domain.Variant) error {
	payload, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("encode variants: %w", err)
	}

	err = metrics.ObserveDB("file_attach_variants", func() error {
		result := r.db.WithContext(ctx).
			Model(&entities.File{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"variants":   datatypes.JSON(payload),
				"status":     string(domain.StatusReady),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("attach variants to file %s: %w", id, err)
	}
	return nil
}

func (r *Repository) MarkDeleted(ctx context.Context, id string) error {
	err := metrics.ObserveDB("file_mark_deleted", func() error {
		now := time.Now()
		result := r.db.WithContext(ctx).
			Model(&entities.File{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     string(domain.StatusDeleted),
				"deleted_at": now,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark file %s deleted: %w", id, err)
	}
	return nil
}

func (r *Repository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	err := metrics.ObserveDB("file_list_purgeable", func() error {
		return r.db.WithContext(ctx).
			Model(&entities.File{}).
			Where("status = ?", string(domain.StatusDeleted)).
			Where("deleted_at IS NOT NULL").
			Where("deleted_at < ?", cutoff).
			Limit(limit).
			Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list purgeable files: %w", err)
	}
	return ids, nil
}

func (r *Repository) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	err := metrics.ObserveDB("file_list_stuck", func() error {
		return r.db.WithContext(ctx).
			Model(&entities.File{}).
			Where("status = ?", string(domain.StatusPendingUpload)).
			Where("updated_at < ?", cutoff).
			Limit(limit).
			Pluck("id", &ids).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list stuck files: %w", err)
	}
	return ids, nil
}

func (r *Repository) HardDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := metrics.ObserveDB("file_hard_delete", func() error {
		return r.db.WithContext(ctx).
			Where("id IN ?", ids).
			Delete(&entities.File{}).Error
	})
	if err != nil {
		return fmt.Errorf("hard delete %d files: %w", len(ids), err)
	}
	return nil
}

func mapEntity(entity entities.File) (*domain.File, error) {
	var variants []domain.Variant
	if len(entity.Variants) > 0 {
		if err := json.Unmarshal(entity.Variants, &variants); err != nil {
			return nil, fmt.Errorf("decode variants for file %s: %w", entity.ID, err)
		}
	}
	return &domain.File{
		ID:               entity.ID,
		UserID:           entity.UserID,
		OriginalFilename: entity.OriginalFilename,
		MimeType:         entity.MimeType,
		SizeBytes:        entity.SizeBytes,
		StorageKey:       entity.StorageKey,
		Status:           domain.Status(entity.Status),
		Variants:         variants,
		DeletedAt:        entity.DeletedAt,
		CreatedAt:        entity.CreatedAt,
		UpdatedAt:        entity.UpdatedAt,
	}, nil
}
