// Package pipeline contains the job handlers that turn a claimed job into
// storage, transform, and ledger side effects.
package pipeline

import "context"

// Storage defines the object storage operations the handlers need.
type Storage interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	// Upload is idempotent by key: re-running a job overwrites rather than
	// duplicates.
	Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error
	DeleteMany(ctx context.Context, bucket string, keys []string) error
}

// Resized is the output of one image transform invocation.
type Resized struct {
	Data   []byte
	Width  int
	Height int
}

// ImageTransform produces a resized rendition of an original image.
type ImageTransform interface {
	Resize(ctx context.Context, data []byte, targetSize int, mimeType string) (Resized, error)
}

// CDN invalidates cached copies of deleted objects.
type CDN interface {
	Invalidate(ctx context.Context, paths []string) error
}
