package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/intra-rank/internal/apperror"
	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// sentinel stored when the upstream profile has no image URL. The frontend
// recognises it and falls back to a placeholder.
const avatarFallback = "GG"

// Upsert inserts or updates a user based on their login.
//
// UPDATE vs INSERT:
// If a row with this login exists, only level, rank and updated_at are
// written — name, avatar, campus_id and promo stay whatever they were at
// first insert (the extension's fixed-identity policy; see model.IntraUser).
// Otherwise a full row is inserted, with the avatar defaulted to the "GG"
// sentinel when the source URL is empty.
//
// We look the row up first rather than using INSERT OR REPLACE because
// REPLACE would delete and re-insert, losing created_at and the fixed
// identity fields.
func (db *DB) Upsert(ctx context.Context, user *model.RankedUser) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE login = ?`, user.Login,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user %q: %w", user.Login, err)
	}

	if existingID != "" {
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET level = ?, rank = ?, updated_at = ? WHERE id = ?`,
			user.Level,
			user.Rank,
			time.Now().UTC(),
			existingID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %q: %w", user.Login, err)
		}
		return nil
	}

	avatar := user.Avatar
	if avatar == "" {
		avatar = avatarFallback
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, login, name, avatar, level, campus_id, promo, rank, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		xid.New().String(),
		user.Login,
		user.Name,
		avatar,
		user.Level,
		user.CampusID,
		user.Promo,
		user.Rank,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Login, err)
	}

	return nil
}

// GetByLogin retrieves a user by their intra login.
// Returns apperror.ErrNotFound if no user exists with that login.
func (db *DB) GetByLogin(ctx context.Context, login string) (*model.IntraUser, error) {
	var u model.IntraUser

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, login, name, avatar, level, campus_id, promo, rank, created_at, updated_at
		 FROM users WHERE login = ?`,
		login,
	).Scan(
		&u.ID,
		&u.Login,
		&u.Name,
		&u.Avatar,
		&u.Level,
		&u.CampusID,
		&u.Promo,
		&u.Rank,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", login)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", login, err)
	}

	return &u, nil
}

// ListByCohort returns all users in one (campus, promo) partition ordered
// by rank ascending — exactly the shape the extension renders.
func (db *DB) ListByCohort(ctx context.Context, campusID, promo int) ([]model.IntraUser, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, login, name, avatar, level, campus_id, promo, rank, created_at, updated_at
		 FROM users WHERE campus_id = ? AND promo = ? ORDER BY rank ASC`,
		campusID, promo,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cohort campus=%d promo=%d: %w", campusID, promo, err)
	}
	defer rows.Close()

	// Start with an empty (non-nil) slice so the handler encodes [] and
	// not null for an unknown cohort.
	users := []model.IntraUser{}
	for rows.Next() {
		var u model.IntraUser
		if err := rows.Scan(
			&u.ID,
			&u.Login,
			&u.Name,
			&u.Avatar,
			&u.Level,
			&u.CampusID,
			&u.Promo,
			&u.Rank,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cohort row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cohort rows: %w", err)
	}

	return users, nil
}
