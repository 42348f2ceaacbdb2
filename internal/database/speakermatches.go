package database

import (
	"context"

	"github.com/lumenprima/mediaplane/internal/model"
)

// UpsertSpeakerMatch records (or refreshes the confidence of) a pairwise
// speaker match. Callers must build the pair with model.NewSpeakerMatch
// so the speaker1_id < speaker2_id ordering invariant (I4) always holds
// before it reaches the database — the schema's CHECK constraint is the
// backstop, not the primary guard.
func (db *DB) UpsertSpeakerMatch(ctx context.Context, m model.SpeakerMatch) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO speaker_matches (speaker1_id, speaker2_id, confidence, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (speaker1_id, speaker2_id)
		DO UPDATE SET confidence = EXCLUDED.confidence, updated_at = EXCLUDED.updated_at`,
		m.Speaker1ID, m.Speaker2ID, m.Confidence, m.UpdatedAt)
	return err
}

// ListSpeakerMatchesFor returns every recorded match involving a speaker,
// regardless of which side of the pair it was stored on.
func (db *DB) ListSpeakerMatchesFor(ctx context.Context, speakerID int64) ([]model.SpeakerMatch, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT speaker1_id, speaker2_id, confidence, updated_at
		FROM speaker_matches WHERE speaker1_id = $1 OR speaker2_id = $1
		ORDER BY confidence DESC`, speakerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SpeakerMatch
	for rows.Next() {
		var m model.SpeakerMatch
		if err := rows.Scan(&m.Speaker1ID, &m.Speaker2ID, &m.Confidence, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
