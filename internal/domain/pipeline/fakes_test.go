package pipeline_test

import (
	"context"
	"time"

	"cdn-server/services/cdn-worker/internal/domain/file"
	"cdn-server/services/cdn-worker/internal/domain/pipeline"
)

// fakeFileLedger is a function-backed file.Ledger for handler tests.
type fakeFileLedger struct {
	GetFunc            func(ctx context.Context, id string) (*file.File, error)
	UpdateStatusFunc   func(ctx context.Context, id string, status file.Status) error
	AttachVariantsFunc func(ctx context.Context, id string, variants []file.Variant) error
	MarkDeletedFunc    func(ctx context.Context, id string) error
	ListPurgeableFunc  func(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	ListStuckFunc      func(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	HardDeleteFunc     func(ctx context.Context, ids []string) error
}

func (f *fakeFileLedger) Get(ctx context.Context, id string) (*file.File, error) {
	return f.GetFunc(ctx, id)
}

func (f *fakeFileLedger) UpdateStatus(ctx context.Context, id string, status file.Status) error {
	if f.UpdateStatusFunc == nil {
		return nil
	}
	return f.UpdateStatusFunc(ctx, id, status)
}

func (f *fakeFileLedger) AttachVariants(ctx context.Context, id string, variants []file.Variant) error {
	if f.AttachVariantsFunc == nil {
		return nil
	}
	return f.AttachVariantsFunc(ctx, id, variants)
}

func (f *fakeFileLedger) MarkDeleted(ctx context.Context, id string) error {
	if f.MarkDeletedFunc == nil {
		return nil
	}
	return f.MarkDeletedFunc(ctx, id)
}

func (f *fakeFileLedger) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return f.ListPurgeableFunc(ctx, cutoff, limit)
}

func (f *fakeFileLedger) ListStuck(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return f.ListStuckFunc(ctx, cutoff, limit)
}

func (f *fakeFileLedger) HardDelete(ctx context.Context, ids []string) error {
	return f.HardDeleteFunc(ctx, ids)
}

// fakeStorage records operations per bucket.
type fakeStorage struct {
	DownloadFunc   func(ctx context.Context, bucket, key string) ([]byte, error)
	UploadFunc     func(ctx context.Context, bucket, key string, body []byte, contentType string) error
	DeleteManyFunc func(ctx context.Context, bucket string, keys []string) error
}

func (f *fakeStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	return f.DownloadFunc(ctx, bucket, key)
}

func (f *fakeStorage) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	return f.UploadFunc(ctx, bucket, key, body, contentType)
}

func (f *fakeStorage) DeleteMany(ctx context.Context, bucket string, keys []string) error {
	return f.DeleteManyFunc(ctx, bucket, keys)
}

type fakeTransform struct {
	ResizeFunc func(ctx context.Context, data []byte, targetSize int, mimeType string) (pipeline.Resized, error)
}

func (f *fakeTransform) Resize(ctx context.Context, data []byte, targetSize int, mimeType string) (pipeline.Resized, error) {
	return f.ResizeFunc(ctx, data, targetSize, mimeType)
}

type fakeCDN struct {
	InvalidateFunc func(ctx context.Context, paths []string) error
}

func (f *fakeCDN) Invalidate(ctx context.Context, paths []string) error {
	return f.InvalidateFunc(ctx, paths)
}
