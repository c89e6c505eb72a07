// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage. The
// whole mirror fits comfortably in one file (a campus is a few thousand
// rows), and tests get a throwaway database with ":memory:".
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// defaultLeaseTTL bounds how long a sync run may hold the guard before a
// new run is allowed to reclaim it. A full two-campus sync takes well under
// a minute; ten minutes means a crashed holder blocks at most one refresh
// cycle.
const defaultLeaseTTL = 10 * time.Minute

// DB wraps a sql.DB connection pool and implements the repository
// interfaces (UserRepository, TokenRepository, TaskRepository,
// UpdateRepository). One struct for all of them keeps wiring simple — the
// tables live in the same file anyway.
type DB struct {
	conn     *sql.DB
	leaseTTL time.Duration
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/intra.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time. With the default pool size,
	// concurrent writes from different pooled connections surface as
	// SQLITE_BUSY errors — notably turning the guard's conditional UPDATE
	// race into an error instead of a clean loss. A single connection
	// serializes all statements inside the driver, and it also means the
	// PRAGMAs below configure the connection every query actually uses.
	conn.SetMaxOpenConns(1)

	// Ping forces an immediate connection so a bad path or permissions
	// issue surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is happening —
	// important because the sync run writes while API requests read.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, leaseTTL: defaultLeaseTTL}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// SetLeaseTTL overrides the guard lease duration. Used by the server
// wiring (config) and by tests that need a short lease.
func (db *DB) SetLeaseTTL(d time.Duration) {
	if d > 0 {
		db.leaseTTL = d
	}
}

// Close closes the database connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every start.
// The singleton rows (service_token is created lazily by Save; sync_task is
// seeded here) use a fixed id '1' so UPDATE ... WHERE id = '1' always
// addresses the one row.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			login      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			avatar     TEXT NOT NULL DEFAULT '',
			level      REAL NOT NULL DEFAULT 0,
			campus_id  INTEGER NOT NULL DEFAULT 0,
			promo      INTEGER NOT NULL DEFAULT 0,
			rank       INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_campus_promo ON users(campus_id, promo, rank);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS service_token (
			id            TEXT PRIMARY KEY,
			access_token  TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at    INTEGER NOT NULL DEFAULT 0,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating service_token table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sync_task (
			id         TEXT PRIMARY KEY,
			active     INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		INSERT OR IGNORE INTO sync_task (id, active) VALUES ('1', 0);
	`)
	if err != nil {
		return fmt.Errorf("creating sync_task table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS updates (
			id         TEXT PRIMARY KEY,
			message    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating updates table: %w", err)
	}

	return nil
}
