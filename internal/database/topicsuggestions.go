package database

import (
	"context"
	"encoding/json"

	"github.com/lumenprima/mediaplane/internal/model"
)

// CreateTopicSuggestion inserts an NLP-derived tag/collection suggestion
// for a file, pending user review.
func (db *DB) CreateTopicSuggestion(ctx context.Context, mediaFileID int64, tags, collections []string) (int64, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, err
	}
	collJSON, err := json.Marshal(collections)
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO topic_suggestions (media_file_id, suggested_tags, suggested_collections, status, user_decisions)
		VALUES ($1, $2, $3, 'pending', '{}')
		RETURNING id`,
		mediaFileID, tagsJSON, collJSON,
	).Scan(&id)
	return id, err
}

// ListTopicSuggestions returns every suggestion recorded for a file.
func (db *DB) ListTopicSuggestions(ctx context.Context, mediaFileID int64) ([]model.TopicSuggestion, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, media_file_id, suggested_tags, suggested_collections, status, user_decisions
		FROM topic_suggestions WHERE media_file_id = $1 ORDER BY id ASC`, mediaFileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TopicSuggestion
	for rows.Next() {
		var t model.TopicSuggestion
		var tagsRaw, collRaw, decisionsRaw []byte
		var status string
		if err := rows.Scan(&t.ID, &t.MediaFileID, &tagsRaw, &collRaw, &status, &decisionsRaw); err != nil {
			return nil, err
		}
		t.Status = model.TopicSuggestionStatus(status)
		if err := json.Unmarshal(tagsRaw, &t.SuggestedTags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(collRaw, &t.SuggestedCollections); err != nil {
			return nil, err
		}
		if len(decisionsRaw) > 0 {
			if err := json.Unmarshal(decisionsRaw, &t.UserDecisions); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordTopicDecision stores a user's accept/reject decision for a single
// suggested tag or collection, keyed by its literal value.
func (db *DB) RecordTopicDecision(ctx context.Context, id int64, item, decision string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE topic_suggestions
		SET user_decisions = jsonb_set(user_decisions, $1, to_jsonb($2::text), true)
		WHERE id = $3`,
		[]string{item}, decision, id)
	return err
}

// SearchMediaFiles performs a full-text search over title/description
// using the generated tsvector column ( full-text index).
func (db *DB) SearchMediaFiles(ctx context.Context, userID int64, query string, limit int) ([]*model.MediaFile, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, mediaFileSelect+`
		WHERE user_id = $1 AND search_vector @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(search_vector, plainto_tsquery('english', $2)) DESC
		LIMIT $3`,
		userID, query, limit,
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
