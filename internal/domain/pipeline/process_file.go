package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"cdn-server/services/cdn-worker/internal/domain/file"
	"cdn-server/services/cdn-worker/internal/domain/job"
)

// ProcessFileHandler downloads an original object, derives the requested
// resized variants, uploads them to the processed bucket, and records the
// full variant set in one ledger write. Any single size failing fails the
// whole job so that ready always implies a complete variant set.
type ProcessFileHandler struct {
	files           file.Ledger
	storage         Storage
	transform       ImageTransform
	rawBucket       string
	processedBucket string
	log             zerolog.Logger
}

func NewProcessFileHandler(
	files file.Ledger,
	storage Storage,
	transform ImageTransform,
	rawBucket string,
	processedBucket string,
	log zerolog.Logger,
) *ProcessFileHandler {
	return &ProcessFileHandler{
		files:           files,
		storage:         storage,
		transform:       transform,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		log:             log.With().Str("component", "process-file").Logger(),
	}
}

// Handle executes one process_file job.
func (h *ProcessFileHandler) Handle(ctx context.Context, msg *job.Message) error {
	record, err := h.files.Get(ctx, msg.FileID)
	if err != nil {
		return fmt.Errorf("get file %s: %w", msg.FileID, err)
	}
	if record == nil {
		return fmt.Errorf("file %s not found", msg.FileID)
	}

	if err := h.files.UpdateStatus(ctx, msg.FileID, file.StatusProcessing); err != nil {
		return fmt.Errorf("mark file processing: %w", err)
	}

	raw, err := h.storage.Download(ctx, h.rawBucket, msg.StorageKey)
	if err != nil {
		return fmt.Errorf("download original %s: %w", msg.StorageKey, err)
	}
	h.log.Debug().
		Str("file_id", msg.FileID).
		Str("storage_key", msg.StorageKey).
		Int("bytes", len(raw)).
		Msg("downloaded original")

	mimeType := record.MimeType
	if mimeType == "" {
		mimeType = mimetype.Detect(raw).String()
	}

	filename := path.Base(msg.StorageKey)
	variants := make([]file.Variant, 0, len(msg.RequestedSizes))

	for _, size := range msg.RequestedSizes {
		resized, err := h.transform.Resize(ctx, raw, size, mimeType)
		if err != nil {
			return fmt.Errorf("resize to %d: %w", size, err)
		}

		key := fmt.Sprintf("processed/%s/%s/%d/%s", msg.UserID, msg.FileID, size, filename)
		if err := h.storage.Upload(ctx, h.processedBucket, key, resized.Data, mimeType); err != nil {
			return fmt.Errorf("upload variant %s: %w", key, err)
		}

		variant := file.Variant{
			Width: resized.Width,
			Bytes: int64(len(resized.Data)),
			Key:   key,
		}
		if resized.Height > 0 {
			height := resized.Height
			variant.Height = &height
		}
		variants = append(variants, variant)
	}

	// All sizes succeeded; publish the complete set and ready atomically.
	if err := h.files.AttachVariants(ctx, msg.FileID, variants); err != nil {
		return fmt.Errorf("attach variants: %w", err)
	}

	h.log.Info().
		Str("file_id", msg.FileID).
		Int("variants", len(variants)).
		Msg("processed file")
	return nil
}
