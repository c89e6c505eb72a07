package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/intra-rank/internal/model"
	"github.com/sakif/intra-rank/internal/repository"
)

// UpdateHandler serves the extension's "is a newer version available"
// check. No auth: the endpoint leaks nothing but the notice text, and it
// is polled before the user has authenticated anything.
type UpdateHandler struct {
	updates repository.UpdateRepository
	logger  *slog.Logger
}

// NewUpdateHandler creates an UpdateHandler.
func NewUpdateHandler(updates repository.UpdateRepository, logger *slog.Logger) *UpdateHandler {
	return &UpdateHandler{updates: updates, logger: logger}
}

// updateResponse is the body of GET /api/check-update. Update is null
// when no notice has ever been published.
type updateResponse struct {
	Update *model.UpdateNotice `json:"update"`
}

// HandleCheck returns the latest update notice.
//
// HTTP: GET /api/check-update (intra-origin CORS only)
func (h *UpdateHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	notice, err := h.updates.Latest(r.Context())
	if err != nil && !isNotFound(err) {
		h.logger.Error("fetching latest update notice failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{Update: notice})
}
