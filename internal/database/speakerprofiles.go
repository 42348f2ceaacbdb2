package database

import (
	"context"

	"github.com/lumenprima/mediaplane/internal/model"
)

// CreateSpeakerProfile inserts a new consolidated voice profile for a user.
func (db *DB) CreateSpeakerProfile(ctx context.Context, userID int64, name string) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO speaker_profiles (user_id, name) VALUES ($1, $2) RETURNING id`,
		userID, name,
	).Scan(&id)
	return id, err
}

// GetSpeakerProfile fetches a profile by ID.
func (db *DB) GetSpeakerProfile(ctx context.Context, id int64) (*model.SpeakerProfile, error) {
	var p model.SpeakerProfile
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, name, description, embedding_count, last_embedding_update
		FROM speaker_profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.EmbeddingCount, &p.LastEmbeddingUpdate)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListSpeakerProfiles returns every profile owned by a user.
func (db *DB) ListSpeakerProfiles(ctx context.Context, userID int64) ([]model.SpeakerProfile, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, name, description, embedding_count, last_embedding_update
		FROM speaker_profiles WHERE user_id = $1 ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SpeakerProfile
	for rows.Next() {
		var p model.SpeakerProfile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.EmbeddingCount, &p.LastEmbeddingUpdate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TouchSpeakerProfileEmbedding bumps the embedding count and last-update
// stamp after a consolidation pass recomputes the profile centroid
//.
func (db *DB) TouchSpeakerProfileEmbedding(ctx context.Context, id int64, count int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE speaker_profiles SET embedding_count = $1, last_embedding_update = now() WHERE id = $2`,
		count, id)
	return err
}

// RenameSpeakerProfile updates the user-facing name/description.
func (db *DB) RenameSpeakerProfile(ctx context.Context, id int64, name, description string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE speaker_profiles SET name = $1, description = $2 WHERE id = $3`, name, description, id)
	return err
}
