// Package metrics defines the Prometheus instruments exposed at /metrics.
//
// Counters are registered on the default registry via promauto, so simply
// importing the package that increments them is enough — no wiring beyond
// mounting promhttp.Handler() on the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts orchestrator runs by outcome: "ok", "partial"
	// (at least one campus aborted), or "error".
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intra_rank_sync_runs_total",
		Help: "Completed synchronization runs by outcome.",
	}, []string{"result"})

	// SyncSkipped counts triggers dropped because the guard was busy.
	SyncSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intra_rank_sync_skipped_total",
		Help: "Sync triggers skipped because a run was already active.",
	})

	// FetchPages counts upstream listing pages fetched successfully.
	FetchPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intra_rank_fetch_pages_total",
		Help: "cursus_users pages fetched from the intra API.",
	})

	// UsersReconciled counts rows upserted into the local mirror.
	UsersReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intra_rank_users_reconciled_total",
		Help: "User records upserted during reconciliation.",
	})

	// TokenRefreshes counts refresh-token exchanges by outcome ("ok"/"error").
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intra_rank_token_refreshes_total",
		Help: "Service token refresh exchanges by outcome.",
	}, []string{"result"})
)
