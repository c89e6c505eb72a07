// Package repository declares the storage interfaces the rest of the
// application depends on. Concrete implementations live in subpackages
// (currently only sqlite). Services receive these interfaces, never a
// concrete DB, so tests can swap in in-memory mocks.
package repository

import (
	"context"

	"github.com/sakif/intra-rank/internal/model"
)

// UserRepository stores the mirrored intra member records.
type UserRepository interface {
	// Upsert inserts a new user or, if the login already exists, updates
	// only the mutable fields (level, rank). See model.IntraUser for the
	// field-mutability policy.
	Upsert(ctx context.Context, user *model.RankedUser) error
	// GetByLogin returns the user with the given login.
	// Returns apperror.ErrNotFound if no such user exists.
	GetByLogin(ctx context.Context, login string) (*model.IntraUser, error)
	// ListByCohort returns all users of one (campus, promo) partition,
	// ordered by rank ascending.
	ListByCohort(ctx context.Context, campusID, promo int) ([]model.IntraUser, error)
}

// TokenRepository holds the singleton service token.
type TokenRepository interface {
	// GetToken returns the stored token pair.
	// Returns apperror.ErrNotFound when the token was never configured.
	GetToken(ctx context.Context) (*model.ServiceToken, error)
	// SaveToken replaces the stored token pair.
	SaveToken(ctx context.Context, token *model.ServiceToken) error
}

// TaskRepository backs the sync guard with the singleton task row.
type TaskRepository interface {
	// TryAcquire atomically flips the active flag from idle to busy.
	// Returns false when another run currently holds the flag and its
	// lease has not yet expired.
	TryAcquire(ctx context.Context) (bool, error)
	// Release unconditionally clears the active flag.
	Release(ctx context.Context) error
	// GetTask returns the current guard state (used for lastUpdate reporting).
	GetTask(ctx context.Context) (*model.SyncTask, error)
}

// UpdateRepository stores the append-only extension update notices.
type UpdateRepository interface {
	// Append records a new notice.
	Append(ctx context.Context, notice *model.UpdateNotice) error
	// Latest returns the most recent notice, or apperror.ErrNotFound
	// when none has ever been published.
	Latest(ctx context.Context) (*model.UpdateNotice, error)
}
