package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/intra-rank/internal/apperror"
	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// compile-time check that *DB implements repository.TokenRepository
var _ repository.TokenRepository = (*DB)(nil)

// tokenRowID is the fixed id of the singleton service token row.
const tokenRowID = "1"

// GetToken returns the stored service token pair.
// Returns apperror.ErrNotFound when no token was ever configured — the
// refresher treats that as "not configured" and fails closed.
func (db *DB) GetToken(ctx context.Context) (*model.ServiceToken, error) {
	var t model.ServiceToken

	err := db.conn.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, updated_at
		 FROM service_token WHERE id = ?`,
		tokenRowID,
	).Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("service token", tokenRowID)
		}
		return nil, fmt.Errorf("sqlite: getting service token: %w", err)
	}

	return &t, nil
}

// SaveToken replaces the singleton service token row. INSERT ... ON CONFLICT
// keeps this a single statement, so a concurrent Get never observes a
// missing row between delete and insert.
func (db *DB) SaveToken(ctx context.Context, token *model.ServiceToken) error {
	token.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO service_token (id, access_token, refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at    = excluded.expires_at,
			updated_at    = excluded.updated_at`,
		tokenRowID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
		token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving service token: %w", err)
	}

	return nil
}
