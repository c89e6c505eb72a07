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

// compile-time check that *DB implements repository.UpdateRepository
var _ repository.UpdateRepository = (*DB)(nil)

// Append records a new update notice. Rows are never edited or deleted —
// publishing a correction means appending a newer notice.
func (db *DB) Append(ctx context.Context, notice *model.UpdateNotice) error {
	notice.ID = xid.New().String()
	notice.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO updates (id, message, created_at) VALUES (?, ?, ?)`,
		notice.ID, notice.Message, notice.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending update notice: %w", err)
	}

	return nil
}

// Latest returns the most recent update notice. xid strings sort
// chronologically, so ORDER BY id DESC gives newest-first without a
// separate timestamp index.
func (db *DB) Latest(ctx context.Context) (*model.UpdateNotice, error) {
	var n model.UpdateNotice

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, message, created_at FROM updates ORDER BY id DESC LIMIT 1`,
	).Scan(&n.ID, &n.Message, &n.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("update notice", "latest")
		}
		return nil, fmt.Errorf("sqlite: getting latest update notice: %w", err)
	}

	return &n, nil
}
