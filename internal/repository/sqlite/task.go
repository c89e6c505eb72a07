package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// compile-time check that *DB implements repository.TaskRepository
var _ repository.TaskRepository = (*DB)(nil)

// taskRowID is the fixed id of the singleton sync task row (seeded by migrate).
const taskRowID = "1"

// TryAcquire atomically claims the sync guard.
//
// COMPARE-AND-SWAP VIA AFFECTED ROWS:
// A read-then-write here would leave a race window between two concurrent
// triggers — both could read active=0 and both would start a run. Instead
// we do the check and the set in one conditional UPDATE and look at
// RowsAffected: SQLite executes the statement atomically, so exactly one
// of two concurrent callers sees 1 affected row.
//
// LEASE EXPIRY:
// The WHERE clause also matches a row whose active flag is stale (set
// longer ago than the lease TTL). A run that crashed between acquire and
// release therefore blocks new runs only until the lease expires, instead
// of forever.
func (db *DB) TryAcquire(ctx context.Context) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-db.leaseTTL)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE sync_task SET active = 1, updated_at = ?
		 WHERE id = ? AND (active = 0 OR updated_at <= ?)`,
		now, taskRowID, cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: acquiring sync guard: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading guard rows affected: %w", err)
	}

	return affected == 1, nil
}

// Release unconditionally clears the active flag. Safe to call when the
// guard is already idle.
func (db *DB) Release(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE sync_task SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), taskRowID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: releasing sync guard: %w", err)
	}
	return nil
}

// GetTask returns the current guard state. The users endpoint reports its
// updated_at as "lastUpdate" — the time the most recent run started or
// finished.
func (db *DB) GetTask(ctx context.Context) (*model.SyncTask, error) {
	var t model.SyncTask
	var active int

	err := db.conn.QueryRowContext(ctx,
		`SELECT active, updated_at FROM sync_task WHERE id = ?`, taskRowID,
	).Scan(&active, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting sync task: %w", err)
	}

	t.Active = active == 1
	return &t, nil
}
