package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/lumenprima/mediaplane/internal/model"
)

// ReplaceTranscriptSegments deletes and re-inserts all segments for a
// media file in one batch, via CopyFrom for bulk-load throughput.
func (db *DB) ReplaceTranscriptSegments(ctx context.Context, mediaFileID int64, segments []model.TranscriptSegment) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcript_segments WHERE media_file_id = $1`, mediaFileID); err != nil {
		return err
	}

	rows := make([][]any, len(segments))
	for i, s := range segments {
		rows[i] = []any{mediaFileID, s.SpeakerID, s.StartTime, s.EndTime, s.Text, s.Confidence}
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transcript_segments"},
			[]string{"media_file_id", "speaker_id", "start_time", "end_time", "text", "confidence"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListTranscriptSegments returns every segment for a media file, ordered
// by start time.
func (db *DB) ListTranscriptSegments(ctx context.Context, mediaFileID int64) ([]model.TranscriptSegment, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, media_file_id, speaker_id, start_time, end_time, text, confidence
		FROM transcript_segments WHERE media_file_id = $1 ORDER BY start_time ASC`, mediaFileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TranscriptSegment
	for rows.Next() {
		var s model.TranscriptSegment
		if err := rows.Scan(&s.ID, &s.MediaFileID, &s.SpeakerID, &s.StartTime, &s.EndTime, &s.Text, &s.Confidence); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AssignSegmentSpeaker relabels every segment carrying oldSpeakerID to
// newSpeakerID — used when the speaker identity engine merges two
// speakers onto the same profile.
func (db *DB) AssignSegmentSpeaker(ctx context.Context, mediaFileID, oldSpeakerID, newSpeakerID int64) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE transcript_segments SET speaker_id = $1 WHERE media_file_id = $2 AND speaker_id = $3`,
		newSpeakerID, mediaFileID, oldSpeakerID)
	return err
}
