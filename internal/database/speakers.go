package database

import (
	"context"

	"github.com/lumenprima/mediaplane/internal/model"
)

// CreateSpeaker inserts a new per-file speaker instance from diarization.
func (db *DB) CreateSpeaker(ctx context.Context, s *model.Speaker) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO speakers (media_file_id, user_id, name, display_name, suggested_name, confidence, verified, profile_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		s.MediaFileID, s.UserID, s.Name, s.DisplayName, s.SuggestedName, s.Confidence, s.Verified, s.ProfileID,
	).Scan(&id)
	return id, err
}

// GetSpeaker fetches a single speaker instance by ID.
func (db *DB) GetSpeaker(ctx context.Context, id int64) (*model.Speaker, error) {
	var s model.Speaker
	err := db.Pool.QueryRow(ctx, `
		SELECT id, media_file_id, user_id, name, display_name, suggested_name, confidence, verified, profile_id
		FROM speakers WHERE id = $1`, id,
	).Scan(&s.ID, &s.MediaFileID, &s.UserID, &s.Name, &s.DisplayName, &s.SuggestedName,
		&s.Confidence, &s.Verified, &s.ProfileID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSpeakersByMediaFile returns every speaker diarized from a file.
func (db *DB) ListSpeakersByMediaFile(ctx context.Context, mediaFileID int64) ([]model.Speaker, error) {
	return db.querySpeakers(ctx, `WHERE media_file_id = $1`, mediaFileID)
}

// ListUnresolvedSpeakers returns a user's speakers with no profile
// assignment yet — the candidate set for cross-file kNN matching
//.
func (db *DB) ListUnresolvedSpeakers(ctx context.Context, userID int64) ([]model.Speaker, error) {
	return db.querySpeakers(ctx, `WHERE user_id = $1 AND profile_id IS NULL`, userID)
}

// ListSpeakersByProfile returns every speaker instance consolidated onto
// a profile.
func (db *DB) ListSpeakersByProfile(ctx context.Context, profileID int64) ([]model.Speaker, error) {
	return db.querySpeakers(ctx, `WHERE profile_id = $1`, profileID)
}

func (db *DB) querySpeakers(ctx context.Context, where string, arg any) ([]model.Speaker, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, media_file_id, user_id, name, display_name, suggested_name, confidence, verified, profile_id
		FROM speakers `+where+` ORDER BY id ASC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Speaker
	for rows.Next() {
		var s model.Speaker
		if err := rows.Scan(&s.ID, &s.MediaFileID, &s.UserID, &s.Name, &s.DisplayName, &s.SuggestedName,
			&s.Confidence, &s.Verified, &s.ProfileID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AssignSpeakerProfile attaches a speaker instance to a consolidated
// profile (match accepted, auto-match above the high-confidence
// threshold, or manual merge).
func (db *DB) AssignSpeakerProfile(ctx context.Context, speakerID, profileID int64) error {
	_, err := db.Pool.Exec(ctx, `UPDATE speakers SET profile_id = $1 WHERE id = $2`, profileID, speakerID)
	return err
}

// SetSuggestedName records the name matching.go proposes from the best kNN
// hit, leaving Verified false until the user confirms it.
func (db *DB) SetSuggestedName(ctx context.Context, speakerID int64, name string, confidence float64) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE speakers SET suggested_name = $1, confidence = $2 WHERE id = $3`, name, confidence, speakerID)
	return err
}

// VerifySpeaker marks a speaker's identity as user-confirmed.
func (db *DB) VerifySpeaker(ctx context.Context, speakerID int64, displayName string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE speakers SET verified = true, display_name = $1 WHERE id = $2`, displayName, speakerID)
	return err
}
