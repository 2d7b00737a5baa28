package file

import (
	"context"
	"time"
)

// Status tracks a file through upload, processing, and deletion.
type Status string

const (
	StatusPendingUpload Status = "pending_upload"
	StatusUploaded      Status = "uploaded"
	StatusProcessing    Status = "processing"
	StatusReady         Status = "ready"
	StatusPendingDelete Status = "pending_delete"
	StatusDeleted       Status = "deleted"
)

// Variant is one resized rendition of a file's original object. Height is
// nil for formats where the decoder cannot recover it.
type Variant struct {
	Width  int    `json:"width"`
	Height *int   `json:"height"`
	Bytes  int64  `json:"bytes"`
	Key    string `json:"key"`
}

// File represents stored file metadata.
type File struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	SizeBytes        int64      `json:"size_bytes"`
	StorageKey       string     `json:"storage_key"`
	Status           Status     `json:"status"`
	Variants         []Variant  `json:"variants"`
	DeletedAt        *time.Time `json:"deleted_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Ledger defines file persistence operations needed by the worker.
type Ledger interface {
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, id string) (*File, error)

	UpdateStatus(ctx context.Context, id string, status Status) error

	// AttachVariants writes the full variant set and the ready status in a
	// single atomic update. Partial variant sets must never become visible.
	AttachVariants(ctx context.Context, id string, variants []Variant) error

	// MarkDeleted soft-deletes the file: status deleted plus a deletion
	// timestamp. The database row survives until the purger removes it.
	MarkDeleted(ctx context.Context, id string) error

	// ListPurgeable returns ids of files soft-deleted before cutoff.
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// ListStuck returns ids of files still pending_upload whose last update
	// is older than cutoff.
	ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	HardDelete(ctx context.Context, ids []string) error
}
