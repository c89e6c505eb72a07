package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/intra-rank/internal/apperror"
	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// Defaults when the extension omits the query parameters — the main
// campus and the current common-core promo.
const (
	defaultCampusID = 55
	defaultYear     = 2024
)

// Syncer is the slice of the sync service this handler needs.
type Syncer interface {
	Trigger(ctx context.Context, token string) bool
}

// UserHandler serves the mirrored ranking data and triggers background
// synchronization.
type UserHandler struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	syncer Syncer
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users repository.UserRepository, tasks repository.TaskRepository, syncer Syncer, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		tasks:  tasks,
		syncer: syncer,
		logger: logger,
	}
}

// cohortResponse is the body of GET /api/users.
type cohortResponse struct {
	Message    string            `json:"message"`
	LastUpdate time.Time         `json:"lastUpdate"`
	Users      []model.IntraUser `json:"users"`
}

// HandleCohort returns the cached ranking for one (campusId, year) cohort
// and kicks off a background sync.
//
// HTTP: GET /api/users?campusId=55&year=2024 (Bearer required)
//
// READ-THEN-TRIGGER:
// The response is served from the mirror immediately — the caller never
// waits for upstream pagination. The trigger runs after the rows are
// loaded; whether it actually starts a run depends on the guard, and the
// handler does not care.
func (h *UserHandler) HandleCohort(w http.ResponseWriter, r *http.Request) {
	campusID := intQuery(r, "campusId", defaultCampusID)
	year := intQuery(r, "year", defaultYear)

	users, err := h.users.ListByCohort(r.Context(), campusID, year)
	if err != nil {
		h.logger.Error("listing cohort failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	var lastUpdate time.Time
	if task, err := h.tasks.GetTask(r.Context()); err == nil {
		lastUpdate = task.UpdatedAt
	}

	if token, ok := BearerFromContext(r.Context()); ok {
		started := h.syncer.Trigger(r.Context(), token)
		if started {
			h.logger.Info("background sync triggered",
				slog.Int("campusId", campusID),
			)
		}
	}

	writeJSON(w, http.StatusOK, cohortResponse{
		Message:    "OK",
		LastUpdate: lastUpdate,
		Users:      users,
	})
}

// lookupResponse is the body of GET /api/user. User is null when the
// login is unknown — the extension treats that as "not on the board yet",
// not as an error, so the status stays 200.
type lookupResponse struct {
	Message string           `json:"message"`
	User    *model.IntraUser `json:"user"`
}

// HandleLookup returns a single mirrored user by login.
//
// HTTP: GET /api/user?login=jdoe (Bearer required)
func (h *UserHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	login := r.URL.Query().Get("login")
	if login == "" {
		writeError(w, apperror.ValidationFailed("login", "login parameter is required"))
		return
	}

	user, err := h.users.GetByLogin(r.Context(), login)
	if err != nil && !isNotFound(err) {
		h.logger.Error("user lookup failed",
			slog.String("login", login),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lookupResponse{
		Message: "OK",
		User:    user, // nil → null for unknown logins
	})
}

// intQuery parses an integer query parameter, falling back to def when
// absent or malformed.
func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
