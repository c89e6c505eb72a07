// Package sync implements the background synchronization job: fetch every
// active member of each configured campus from the intra API, compute the
// per-cohort ranking, and reconcile the result into the local mirror —
// at most one run at a time, fleet-wide.
//
// LAYERING:
// The package mirrors the service layer convention — HTTP handlers call
// Trigger, Trigger consults the persisted guard and spawns the run; the
// run itself only sees repository interfaces and the Fetcher interface, so
// tests drive it entirely with mocks.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/intra-rank/internal/intra"
	"github.com/sakif/intra-rank/internal/metrics"
	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// runTimeout bounds one full run. A hung upstream call would otherwise
// hold the guard until the lease reclaims it; timing the run out first
// keeps "guard released" and "run finished" the same event.
const runTimeout = 5 * time.Minute

// Fetcher is the slice of the intra client the sync needs. Satisfied by
// *intra.Client; tests install a stub.
type Fetcher interface {
	FetchCampus(ctx context.Context, token string, campusID int) ([]model.CursusUser, error)
}

// Service orchestrates guarded synchronization runs.
type Service struct {
	fetcher  Fetcher
	users    repository.UserRepository
	tasks    repository.TaskRepository
	campuses []int
	logger   *slog.Logger
}

// NewService creates the sync service. campuses is the fixed list of
// campus ids every run covers, in order.
func NewService(
	fetcher Fetcher,
	users repository.UserRepository,
	tasks repository.TaskRepository,
	campuses []int,
	logger *slog.Logger,
) *Service {
	return &Service{
		fetcher:  fetcher,
		users:    users,
		tasks:    tasks,
		campuses: campuses,
		logger:   logger,
	}
}

// Trigger starts a synchronization run in the background if no run is
// currently active. Returns true when a run was started.
//
// FIRE-AND-FORGET:
// The caller (an HTTP handler) must not block on the run — the response
// goes out with whatever the mirror currently holds, and the fresh data
// lands on the next request. Repeated triggers while a run is active are
// silently skipped; there is no queue.
func (s *Service) Trigger(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	acquired, err := s.tasks.TryAcquire(ctx)
	if err != nil {
		s.logger.Error("sync guard acquisition failed", slog.String("error", err.Error()))
		return false
	}
	if !acquired {
		metrics.SyncSkipped.Inc()
		s.logger.Debug("sync already active, skipping trigger")
		return false
	}

	go s.run(token)
	return true
}

// run executes one guarded synchronization pass over all campuses.
// It owns its own context — the triggering HTTP request is long gone by
// the time the later campuses sync.
func (s *Service) run(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// Release whether the run succeeded, failed, or panicked into the
	// recoverer. Uses a fresh context: ctx may already be past its
	// deadline, and a held guard is worse than a late release.
	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer releaseCancel()
		if err := s.tasks.Release(releaseCtx); err != nil {
			s.logger.Error("sync guard release failed", slog.String("error", err.Error()))
		}
	}()

	result := "ok"
	start := time.Now()

	// Strictly sequential: campus N+1 does not start fetching until
	// campus N is reconciled, bounding upstream request concurrency to 1.
	for _, campusID := range s.campuses {
		if err := s.syncCampus(ctx, token, campusID); err != nil {
			if errors.Is(err, intra.ErrPageFetch) {
				// Partial fetch: the campus was reconciled with what we
				// got; carry on with the remaining campuses.
				result = "partial"
				continue
			}
			s.logger.Error("sync run aborted",
				slog.Int("campusId", campusID),
				slog.String("error", err.Error()),
			)
			result = "error"
			break
		}
	}

	metrics.SyncRuns.WithLabelValues(result).Inc()
	s.logger.Info("sync run finished",
		slog.String("result", result),
		slog.Duration("duration", time.Since(start)),
	)
}

// syncCampus runs fetch → rank → reconcile for one campus.
//
// A page-fetch failure does not discard the pages already collected:
// ranking a truncated set still produces internally consistent ranks for
// the records we have, and the next run overwrites them anyway. The
// ErrPageFetch is returned after reconciliation so the caller can record
// the run as partial.
func (s *Service) syncCampus(ctx context.Context, token string, campusID int) error {
	s.logger.Info("syncing campus", slog.Int("campusId", campusID))

	fetched, fetchErr := s.fetcher.FetchCampus(ctx, token, campusID)
	if fetchErr != nil && !errors.Is(fetchErr, intra.ErrPageFetch) {
		return fmt.Errorf("sync: fetching campus %d: %w", campusID, fetchErr)
	}

	ranked := Rank(campusID, fetched)

	if err := s.reconcile(ctx, ranked); err != nil {
		return fmt.Errorf("sync: reconciling campus %d: %w", campusID, err)
	}

	s.logger.Info("campus reconciled",
		slog.Int("campusId", campusID),
		slog.Int("users", len(ranked)),
	)

	return fetchErr
}

// reconcile upserts the ranked records sequentially. The first failing
// upsert aborts the remainder and its error is returned; rows already
// written stay written — no transaction spans the batch, so a failed run
// leaves the mirror partially updated until the next successful one.
func (s *Service) reconcile(ctx context.Context, users []model.RankedUser) error {
	for i := range users {
		if err := s.users.Upsert(ctx, &users[i]); err != nil {
			return fmt.Errorf("upserting %q: %w", users[i].Login, err)
		}
		metrics.UsersReconciled.Inc()
	}
	return nil
}
