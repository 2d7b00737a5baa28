package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"cdn-server/services/cdn-worker/internal/domain/file"
	"cdn-server/services/cdn-worker/internal/domain/job"
)

// DeleteFileHandler removes a file's objects from storage, soft-deletes the
// record, and asks the CDN to drop cached copies. Deleting an already-deleted
// file is a no-op success, which makes redelivered delete jobs harmless.
type DeleteFileHandler struct {
	files           file.Ledger
	storage         Storage
	cdn             CDN
	rawBucket       string
	processedBucket string
	log             zerolog.Logger
}

func NewDeleteFileHandler(
	files file.Ledger,
	storage Storage,
	cdn CDN,
	rawBucket string,
	processedBucket string,
	log zerolog.Logger,
) *DeleteFileHandler {
	return &DeleteFileHandler{
		files:           files,
		storage:         storage,
		cdn:             cdn,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		log:             log.With().Str("component", "delete-file").Logger(),
	}
}

// Handle executes one delete_file job.
func (h *DeleteFileHandler) Handle(ctx context.Context, msg *job.Message) error {
	record, err := h.files.Get(ctx, msg.FileID)
	if err != nil {
		return fmt.Errorf("get file %s: %w", msg.FileID, err)
	}
	if record == nil {
		h.log.Info().Str("file_id", msg.FileID).Msg("file already gone, nothing to delete")
		return nil
	}

	variantKeys := make([]string, 0, len(record.Variants))
	for _, variant := range record.Variants {
		variantKeys = append(variantKeys, variant.Key)
	}

	if err := h.storage.DeleteMany(ctx, h.rawBucket, []string{record.StorageKey}); err != nil {
		return fmt.Errorf("delete original %s: %w", record.StorageKey, err)
	}
	if len(variantKeys) > 0 {
		if err := h.storage.DeleteMany(ctx, h.processedBucket, variantKeys); err != nil {
			return fmt.Errorf("delete variants: %w", err)
		}
	}

	if err := h.files.MarkDeleted(ctx, msg.FileID); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}

	h.log.Info().
		Str("file_id", msg.FileID).
		Int("objects", 1+len(variantKeys)).
		Msg("deleted file objects")

	// The objects are already gone from origin storage; stale cached copies
	// self-expire, so invalidation failure never fails the job.
	paths := make([]string, 0, 1+len(variantKeys))
	paths = append(paths, cdnPath(h.processedBucket, record.StorageKey))
	for _, key := range variantKeys {
		paths = append(paths, cdnPath(h.processedBucket, key))
	}
	if err := h.cdn.Invalidate(ctx, paths); err != nil {
		h.log.Warn().Err(err).Str("file_id", msg.FileID).Msg("cdn invalidation failed")
	}

	return nil
}

func cdnPath(bucket, key string) string {
	return fmt.Sprintf("/cdn/%s/%s", bucket, key)
}
