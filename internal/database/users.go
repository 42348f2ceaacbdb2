package database

import (
	"context"

	"github.com/lumenprima/mediaplane/internal/model"
)

// GetUserByExternalID looks up a user by the caller's external identity,
// creating one on first sight so that callers never have to provision
// users out of band.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var u model.User
	err := db.Pool.QueryRow(ctx,
		`SELECT id, external_id, role, active FROM users WHERE external_id = $1`,
		externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Role, &u.Active)
	if err == nil {
		return &u, nil
	}

	err = db.Pool.QueryRow(ctx,
		`INSERT INTO users (external_id, role, active) VALUES ($1, 'user', true)
		 ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		 RETURNING id, external_id, role, active`,
		externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Role, &u.Active)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by primary key.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := db.Pool.QueryRow(ctx,
		`SELECT id, external_id, role, active FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.ExternalID, &u.Role, &u.Active)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
