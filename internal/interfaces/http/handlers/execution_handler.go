package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webhookd/engine/internal/domain/execution"
	"github.com/webhookd/engine/pkg/types/common"
)

// ExecutionHandler exposes the read-only admin surface over
// CallbackExecution, the append-per-attempt audit trail the Dispatcher
// writes on every delivery outcome.
type ExecutionHandler struct {
	repo execution.Repository
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(repo execution.Repository) *ExecutionHandler {
	return &ExecutionHandler{repo: repo}
}

// Get handles GET /callback-executions/{id}.
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	e, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListByConfiguration handles GET /callback-configurations/{id}/executions,
// the "every outcome yields at least one Execution row reachable through the
// admin read path" surface.
func (h *ExecutionHandler) ListByConfiguration(w http.ResponseWriter, r *http.Request) {
	configID := common.ID(chi.URLParam(r, "id"))
	page, pageSize := parsePagination(r)

	resp, err := h.repo.ListByConfiguration(r.Context(), configID, common.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
