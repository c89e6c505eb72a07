package model

import "time"

// ServiceToken is the service-level OAuth access/refresh pair used for
// machine-to-machine intra calls (distinct from any end-user session).
// Exactly one row exists system-wide; it is only mutated by the token
// refresher after a successful refresh exchange.
type ServiceToken struct {
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    int64     `db:"expires_at"` // unix seconds, 0 = unknown (probe instead)
	UpdatedAt    time.Time `db:"updated_at"`
}

// SyncTask is the persisted single-flight guard state. One row, id "1".
// Active is set when a synchronization run starts and cleared when it
// finishes; UpdatedAt doubles as the lease timestamp so a crashed holder's
// lock can be reclaimed once the lease expires.
type SyncTask struct {
	Active    bool      `db:"active"`
	UpdatedAt time.Time `db:"updated_at"`
}

// UpdateNotice is the latest-version message the extension polls for.
// Rows are append-only; "latest" means highest id (xid ids sort by time).
type UpdateNotice struct {
	ID        string    `json:"id"        db:"id"`
	Message   string    `json:"message"   db:"message"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
