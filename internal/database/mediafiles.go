package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lumenprima/mediaplane/internal/model"
)

// MediaFileFilter narrows ListMediaFiles.
type MediaFileFilter struct {
	UserID *int64
	Status *model.FileStatus
	Limit  int
	Offset int
}

// CreateMediaFile inserts a new media file in PENDING status and returns
// its assigned ID.
func (db *DB) CreateMediaFile(ctx context.Context, mf *model.MediaFile) (int64, error) {
	metaRaw, err := marshalMetadata(mf.MetadataRaw)
	if err != nil {
		return 0, err
	}
	metaImportant, err := marshalMetadata(mf.MetadataImportant)
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO media_files (
			external_id, user_id, filename, blob_key, byte_size, content_type,
			title, author, description, source_url, status, file_hash,
			metadata_raw, metadata_important
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		mf.ExternalID, mf.UserID, mf.Filename, mf.BlobKey, mf.ByteSize, mf.ContentType,
		mf.Title, mf.Author, mf.Description, mf.SourceURL, string(model.FileStatusPending), mf.FileHash,
		metaRaw, metaImportant,
	).Scan(&id)
	return id, err
}

// GetMediaFile fetches one media file by primary key.
func (db *DB) GetMediaFile(ctx context.Context, id int64) (*model.MediaFile, error) {
	row := db.Pool.QueryRow(ctx, mediaFileSelect+` WHERE id = $1`, id)
	return scanMediaFile(row)
}

// FindMediaFileByHash looks up an existing file by content hash, for the
// upload-time dedup check.
func (db *DB) FindMediaFileByHash(ctx context.Context, userID int64, hash string) (*model.MediaFile, error) {
	row := db.Pool.QueryRow(ctx, mediaFileSelect+` WHERE user_id = $1 AND file_hash = $2 LIMIT 1`, userID, hash)
	mf, err := scanMediaFile(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return mf, err
}

// ListMediaFiles returns media files matching the filter, most recent first.
func (db *DB) ListMediaFiles(ctx context.Context, filter MediaFileFilter) ([]*model.MediaFile, error) {
	query := mediaFileSelect + ` WHERE ($1::bigint IS NULL OR user_id = $1) AND ($2::text IS NULL OR status = $2)
		ORDER BY upload_time DESC LIMIT $3 OFFSET $4`

	var statusArg any
	if filter.Status != nil {
		statusArg = string(*filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Pool.Query(ctx, query, filter.UserID, statusArg, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MediaFile
	for rows.Next() {
		mf, err := scanMediaFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mf)
	}
	return out, rows.Err()
}

// ListByStatusOlderThan returns media files in the given status whose
// task_started_at (or upload_time, if task never started) predates the
// cutoff — the core query behind the recovery subsystem's stuck/abandoned/
// orphaned detection rules.
func (db *DB) ListByStatusOlderThan(ctx context.Context, status model.FileStatus, cutoff time.Time) ([]*model.MediaFile, error) {
	rows, err := db.Pool.Query(ctx, mediaFileSelect+`
		WHERE status = $1 AND COALESCE(task_started_at, upload_time) < $2
		ORDER BY upload_time ASC`,
		string(status), cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MediaFile
	for rows.Next() {
		mf, err := scanMediaFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mf)
	}
	return out, rows.Err()
}

// ListAbandonedCandidates returns PROCESSING files uploaded before cutoff,
// regardless of task_started_at — the recovery subsystem's "abandoned
// file" detection rule compares against upload_time directly, unlike
// ListByStatusOlderThan's stuck-task variant.
func (db *DB) ListAbandonedCandidates(ctx context.Context, cutoff time.Time) ([]*model.MediaFile, error) {
	rows, err := db.Pool.Query(ctx, mediaFileSelect+`
		WHERE status = $1 AND upload_time < $2
		ORDER BY upload_time ASC`,
		string(model.FileStatusProcessing), cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MediaFile
	for rows.Next() {
		mf, err := scanMediaFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mf)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a media file to a new status, stamping the
// matching timestamp column. Side effects beyond the row update (emitting
// notifications, enqueueing follow-on tasks) are the lifecycle package's
// job, not this one's.
func (db *DB) UpdateStatus(ctx context.Context, id int64, status model.FileStatus, errMsg string) error {
	var stampCol string
	switch status {
	case model.FileStatusProcessing:
		stampCol = "task_started_at"
	case model.FileStatusCompleted, model.FileStatusError, model.FileStatusCancelled:
		stampCol = "completed_at"
	}

	if stampCol == "" {
		_, err := db.Pool.Exec(ctx,
			`UPDATE media_files SET status = $1, last_error_message = $2 WHERE id = $3`,
			string(status), errMsg, id,
		)
		return err
	}

	query := fmt.Sprintf(
		`UPDATE media_files SET status = $1, last_error_message = $2, %s = now() WHERE id = $3`,
		stampCol,
	)
	_, err := db.Pool.Exec(ctx, query, string(status), errMsg, id)
	return err
}

// IncrementRecoveryAttempts bumps a media file's recovery counter and
// stamps last_recovery_attempt, returning the new attempt count.
func (db *DB) IncrementRecoveryAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := db.Pool.QueryRow(ctx, `
		UPDATE media_files
		SET recovery_attempts = recovery_attempts + 1, last_recovery_attempt = now()
		WHERE id = $1
		RETURNING recovery_attempts`,
		id,
	).Scan(&attempts)
	return attempts, err
}

// MarkForceDeleteEligible flags a file as eligible for forced deletion
// once it has exhausted recovery attempts.
func (db *DB) MarkForceDeleteEligible(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE media_files SET force_delete_eligible = true WHERE id = $1`, id)
	return err
}

// TouchLastRecoveryAttempt stamps last_recovery_attempt without touching
// the recovery_attempts counter — the side effect every ORPHANED entry
// carries, independent of whether this particular orphaning
// came with an attempt-count increment.
func (db *DB) TouchLastRecoveryAttempt(ctx context.Context, id int64) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE media_files SET last_recovery_attempt = now() WHERE id = $1`, id)
	return err
}

// ListOrphanedOlderThan returns ORPHANED files not yet flagged
// force_delete_eligible whose last_recovery_attempt predates cutoff — the
// candidate set for the global orphan threshold sweep ('s
// "conditionally flips force_delete_eligible after a global orphan
// threshold has elapsed since orphaning").
func (db *DB) ListOrphanedOlderThan(ctx context.Context, cutoff time.Time) ([]*model.MediaFile, error) {
	rows, err := db.Pool.Query(ctx, mediaFileSelect+`
		WHERE status = $1 AND force_delete_eligible = false AND last_recovery_attempt < $2
		ORDER BY last_recovery_attempt ASC`,
		string(model.FileStatusOrphaned), cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MediaFile
	for rows.Next() {
		mf, err := scanMediaFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mf)
	}
	return out, rows.Err()
}

// SetWaveform stores the resolution-keyed waveform sample map alongside
// the file.
func (db *DB) SetWaveform(ctx context.Context, id int64, data map[string][]float32) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `UPDATE media_files SET waveform_data = $1 WHERE id = $2`, raw, id)
	return err
}

// ListActiveBlobKeys returns the blob_key of every file still mid-pipeline
// (pending, processing, or cancelling) — the set the local cache pruner
// must never evict regardless of age or size pressure, since a retry or
// in-flight task still expects to read that blob from local disk.
func (db *DB) ListActiveBlobKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT blob_key FROM media_files WHERE status IN ($1,$2,$3) AND blob_key != ''`,
		string(model.FileStatusPending), string(model.FileStatusProcessing), string(model.FileStatusCancelling),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out[key] = true
	}
	return out, rows.Err()
}

// BlobRef pairs a stored blob's key with its original content type, for
// callers (the upload reconciler) that need to re-PUT a blob without
// guessing its MIME type from a file extension.
type BlobRef struct {
	BlobKey     string
	ContentType string
}

// ListRecentBlobs returns the blob key/content-type of every file
// uploaded since cutoff — the candidate set the upload reconciler checks
// against S3, rather than walking the local cache directory and
// reconstructing keys from an assumed path layout.
func (db *DB) ListRecentBlobs(ctx context.Context, cutoff time.Time) ([]BlobRef, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT blob_key, content_type FROM media_files WHERE upload_time >= $1 AND blob_key != ''`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BlobRef
	for rows.Next() {
		var b BlobRef
		if err := rows.Scan(&b.BlobKey, &b.ContentType); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetDescription stores an LLM-generated summary in the same column the
// full-text search_vector is generated from, so a completed
// summarization task immediately becomes searchable.
func (db *DB) SetDescription(ctx context.Context, id int64, description string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE media_files SET description = $1 WHERE id = $2`, description, id)
	return err
}

const mediaFileSelect = `
	SELECT id, external_id, user_id, filename, blob_key, byte_size, duration, content_type,
		title, author, description, source_url, status, file_hash, recovery_attempts,
		force_delete_eligible, last_error_message, upload_time, task_started_at, completed_at,
		last_recovery_attempt, waveform_data, thumbnail_path, metadata_raw, metadata_important
	FROM media_files`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaFile(row rowScanner) (*model.MediaFile, error) {
	var mf model.MediaFile
	var status string
	var waveformRaw, metaRaw, metaImportant []byte

	err := row.Scan(
		&mf.ID, &mf.ExternalID, &mf.UserID, &mf.Filename, &mf.BlobKey, &mf.ByteSize, &mf.Duration, &mf.ContentType,
		&mf.Title, &mf.Author, &mf.Description, &mf.SourceURL, &status, &mf.FileHash, &mf.RecoveryAttempts,
		&mf.ForceDeleteEligible, &mf.LastErrorMessage, &mf.UploadTime, &mf.TaskStartedAt, &mf.CompletedAt,
		&mf.LastRecoveryAttempt, &waveformRaw, &mf.ThumbnailPath, &metaRaw, &metaImportant,
	)
	if err != nil {
		return nil, err
	}
	mf.Status = model.FileStatus(status)

	if len(waveformRaw) > 0 {
		if err := json.Unmarshal(waveformRaw, &mf.WaveformData); err != nil {
			return nil, err
		}
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &mf.MetadataRaw); err != nil {
			return nil, err
		}
	}
	if len(metaImportant) > 0 {
		if err := json.Unmarshal(metaImportant, &mf.MetadataImportant); err != nil {
			return nil, err
		}
	}
	return &mf, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
