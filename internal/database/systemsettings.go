package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/lumenprima/mediaplane/internal/model"
)

// GetSystemSetting fetches one setting by key, or ("", false) if unset.
func (db *DB) GetSystemSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.Pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// ListSystemSettings returns every setting row — the seed set read at
// startup into the retry policy store's in-memory cache.
func (db *DB) ListSystemSettings(ctx context.Context) ([]model.SystemSetting, error) {
	rows, err := db.Pool.Query(ctx, `SELECT key, value, description FROM system_settings ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SystemSetting
	for rows.Next() {
		var s model.SystemSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetSystemSetting upserts a setting value.
func (db *DB) SetSystemSetting(ctx context.Context, key, value, description string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO system_settings (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`,
		key, value, description)
	return err
}
