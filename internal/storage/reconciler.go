package storage

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenprima/mediaplane/internal/database"
)

// UploadReconciler checks every recently-uploaded file's blob against S3
// and re-uploads whatever AsyncUploader's bounded queue dropped or a
// mid-upload crash left behind. Driven off the Relational Store rather
// than the local cache directory layout, so it doesn't need to know or
// guess how blob keys map to paths on disk.
type UploadReconciler struct {
	db       *database.DB
	local    *LocalStore
	s3       *S3Store
	interval time.Duration
	window   time.Duration
	log      zerolog.Logger
	stop     chan struct{}
}

// NewUploadReconciler creates a reconciler that checks for missing S3
// uploads among files uploaded within the last 24h.
func NewUploadReconciler(db *database.DB, local *LocalStore, s3 *S3Store, log zerolog.Logger) *UploadReconciler {
	return &UploadReconciler{
		db:       db,
		local:    local,
		s3:       s3,
		interval: 5 * time.Minute,
		window:   24 * time.Hour,
		log:      log.With().Str("component", "upload-reconciler").Logger(),
		stop:     make(chan struct{}),
	}
}

func (r *UploadReconciler) Start() { go r.loop() }
func (r *UploadReconciler) Stop()  { close(r.stop) }

func (r *UploadReconciler) loop() {
	// Delay first run to let startup uploads settle
	select {
	case <-time.After(2 * time.Minute):
	case <-r.stop:
		return
	}

	r.reconcile()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stop:
			return
		}
	}
}

func (r *UploadReconciler) reconcile() {
	listCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	blobs, err := r.db.ListRecentBlobs(listCtx, time.Now().Add(-r.window))
	cancel()
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to list recent blobs, skipping this pass")
		return
	}

	var uploaded, failed, checked int
	for _, b := range blobs {
		checked++

		existsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		exists := r.s3.Exists(existsCtx, b.BlobKey)
		cancel()
		if exists {
			continue
		}

		rc, err := r.local.Get(context.Background(), b.BlobKey)
		if err != nil {
			// Not in S3 and not cached locally either — nothing this
			// pass can do about it; the file's own retry path owns that.
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		putCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := r.s3.Put(putCtx, b.BlobKey, data, b.ContentType); err != nil {
			r.log.Warn().Err(err).Str("key", b.BlobKey).Msg("reconcile upload failed")
			failed++
		} else {
			uploaded++
		}
		cancel()
	}

	if uploaded > 0 || failed > 0 {
		r.log.Info().
			Int("uploaded", uploaded).
			Int("failed", failed).
			Int("checked", checked).
			Msg("reconcile complete")
	}
}
