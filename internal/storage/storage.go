// Package storage is the Object Store: blob and
// derived-artifact storage with put/get/stat/range-get/delete/exists,
// local/S3/tiered backends, and optional presigned-URL host rewriting.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/config"
	"github.com/lumenprima/mediaplane/internal/database"
)

// BlobStore abstracts object storage backends behind the contract 
// draws around the Object Store: put/get/stat/range-get/delete/exists,
// plus presigned URL generation.
type BlobStore interface {
	// Put stores a blob. key format is caller-defined (e.g. {user_id}/{file_id}/{name}).
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Stat returns the blob's size in bytes.
	Stat(ctx context.Context, key string) (int64, error)

	// Get returns a reader over the full blob.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// RangeGet returns a reader over [start, end] of the blob, honoring
	// RFC 7233 "bytes=start-end|start-|-suffix" semantics. An out-of-range
	// start is reset to 0.
	RangeGet(ctx context.Context, key string, r Range) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a non-existent key is not an error.
	Delete(ctx context.Context, key string) error

	// LocalPath returns the local filesystem path if the blob exists on
	// disk. Returns "" for backends with no local presence.
	LocalPath(key string) string

	// URL returns a presigned URL for the blob, or "" for local-only
	// backends.
	URL(ctx context.Context, key string) (string, error)

	// Exists checks whether a blob exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates a BlobStore based on config. db is consulted by the cache
// pruner (to avoid evicting a still-active file's local copy) and the
// upload reconciler (to find recently-uploaded blobs to check against
// S3) when tiered mode is in play; it is unused for local-only or
// S3-only modes. Returns the store and optional background services
// (uploader, pruner, reconciler) that the caller must Start/Stop.
// Returns an error if S3 is configured but unreachable.
func New(cfg config.S3Config, localDir string, db *database.DB, log zerolog.Logger) (BlobStore, []BackgroundService, error) {
	if !cfg.Enabled() {
		return NewLocalStore(localDir), nil, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil, nil
	}

	// Tiered mode: local primary + S3 backup
	local := NewLocalStore(localDir)
	uploader := NewAsyncUploader(s3store, cfg.UploadQueueSize, cfg.UploadWorkers, log)
	tiered := NewTieredStore(s3store, local, uploader, log)

	var services []BackgroundService
	services = append(services, uploader)

	if cfg.CacheRetention > 0 || cfg.CacheMaxGB > 0 {
		pruner := NewCachePruner(localDir, cfg.CacheRetention, cfg.CacheMaxGB, s3store, db, log)
		services = append(services, pruner)
	}

	reconciler := NewUploadReconciler(db, local, s3store, log)
	services = append(services, reconciler)

	return tiered, services, nil
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}
