package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"
)

// TieredStore combines local disk (source of truth) with S3 (backup/durability).
// Write path: save locally first (never block on S3), then push to S3.
// Read path: local first, S3 fallback with cache-on-read.
type TieredStore struct {
	s3       *S3Store
	local    *LocalStore
	uploader *AsyncUploader
	log      zerolog.Logger
}

// NewTieredStore creates a tiered local-primary + S3-backup store. The S3
// backup write for every Put is handed to uploader rather than made
// inline, so a slow or unreachable S3 endpoint never adds latency to the
// ingest path; the UploadReconciler's periodic sweep is the backstop for
// anything the uploader's bounded queue drops.
func NewTieredStore(s3 *S3Store, local *LocalStore, uploader *AsyncUploader, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		s3:       s3,
		local:    local,
		uploader: uploader,
		log:      log.With().Str("component", "tiered-store").Logger(),
	}
}

// Put writes to local disk first (fatal on failure), then enqueues the S3
// backup write. S3 failures are non-fatal — the upload reconciler will
// catch them.
func (s *TieredStore) Put(ctx context.Context, key string, data []byte, ct string) error {
	if err := s.local.Put(ctx, key, data, ct); err != nil {
		return err
	}
	s.uploader.Enqueue(key, data, ct)
	return nil
}

// PutLocal writes only to local disk.
func (s *TieredStore) PutLocal(ctx context.Context, key string, data []byte, ct string) error {
	return s.local.Put(ctx, key, data, ct)
}

// PutToS3 writes only to S3.
func (s *TieredStore) PutToS3(ctx context.Context, key string, data []byte, ct string) error {
	return s.s3.Put(ctx, key, data, ct)
}

func (s *TieredStore) Stat(ctx context.Context, key string) (int64, error) {
	if n, err := s.local.Stat(ctx, key); err == nil {
		return n, nil
	}
	return s.s3.Stat(ctx, key)
}

func (s *TieredStore) LocalPath(key string) string {
	return s.local.LocalPath(key)
}

func (s *TieredStore) URL(ctx context.Context, key string) (string, error) {
	return s.s3.URL(ctx, key)
}

// Get returns a reader for the blob. Checks local disk first, then falls
// back to S3. On S3 hit, the blob is cached locally for future reads.
func (s *TieredStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if r, err := s.local.Get(ctx, key); err == nil {
		return r, nil
	}
	// S3 fallback: read, cache locally, return
	r, err := s.s3.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, err
	}
	// Best-effort local cache write
	if cacheErr := s.local.Put(ctx, key, data, ""); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("key", key).Msg("failed to cache S3 blob locally")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// RangeGet serves the range from local disk if cached, otherwise fetches
// the full object from S3, caches it, and serves the range from the cache.
func (s *TieredStore) RangeGet(ctx context.Context, key string, r Range) (io.ReadCloser, error) {
	if s.local.Exists(ctx, key) {
		return s.local.RangeGet(ctx, key, r)
	}
	full, err := s.s3.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(full)
	full.Close()
	if err != nil {
		return nil, err
	}
	if cacheErr := s.local.Put(ctx, key, data, ""); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("key", key).Msg("failed to cache S3 blob locally")
	}
	start, end := r.Resolve(int64(len(data)))
	if start > end || start >= int64(len(data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (s *TieredStore) Delete(ctx context.Context, key string) error {
	if err := s.local.Delete(ctx, key); err != nil {
		return err
	}
	return s.s3.Delete(ctx, key)
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	if s.local.Exists(ctx, key) {
		return true
	}
	return s.s3.Exists(ctx, key)
}

func (s *TieredStore) Type() string { return "tiered" }

// S3Store returns the underlying S3 store (used by pruner/reconciler).
func (s *TieredStore) S3Store() *S3Store { return s.s3 }
