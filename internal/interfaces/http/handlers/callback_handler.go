package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webhookd/engine/internal/domain/callback"
	"github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// CallbackHandler exposes CRUD and status-transition endpoints over
// CallbackConfiguration, the admin surface for the Config Store.
type CallbackHandler struct {
	repo callback.Repository
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(repo callback.Repository) *CallbackHandler {
	return &CallbackHandler{repo: repo}
}

type createCallbackRequest struct {
	Name                   string            `json:"name"`
	URL                    string            `json:"url"`
	Method                 callback.Method   `json:"method"`
	SubscribedEventTypes   []string          `json:"subscribed_event_types"`
	CustomHeaders          map[string]string `json:"custom_headers"`
	Metadata               common.Metadata   `json:"metadata"`
	SignatureEnabled       bool              `json:"signature_enabled"`
	Secret                 string            `json:"secret"`
	SignatureHeader        string            `json:"signature_header"`
	MaxRetries             int               `json:"max_retries"`
	RetryDelayMs           int               `json:"retry_delay_ms"`
	RetryBackoffMultiplier float64           `json:"retry_backoff_multiplier"`
	TimeoutMs              int               `json:"timeout_ms"`
	FilterExpression       string            `json:"filter_expression"`
	FailureThreshold       int               `json:"failure_threshold"`
	Active                 bool              `json:"active"`
}

// Create handles POST /callback-configurations.
func (h *CallbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, errors.InvalidParam("malformed request body"))
		return
	}

	c, err := callback.NewCallbackConfiguration(
		req.Name, req.URL, req.Method, req.SubscribedEventTypes, req.CustomHeaders,
		req.Metadata, req.SignatureEnabled, []byte(req.Secret), req.SignatureHeader,
		req.MaxRetries, req.RetryDelayMs, req.RetryBackoffMultiplier, req.TimeoutMs,
		req.FilterExpression, req.FailureThreshold, req.Active,
		common.UserID(getUserIDFromContext(r)),
	)
	if err != nil {
		writeAppError(w, errors.InvalidParam(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), c); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Get handles GET /callback-configurations/{id}.
func (h *CallbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// List handles GET /callback-configurations.
func (h *CallbackHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	resp, err := h.repo.List(r.Context(), common.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /callback-configurations/{id}.
func (h *CallbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status callback.Status `json:"status"`
}

// UpdateStatus handles PATCH /callback-configurations/{id}/status, the
// operator-driven transition endpoint guarded by allowedTransitions.
func (h *CallbackHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, errors.InvalidParam("malformed request body"))
		return
	}

	c, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := c.UpdateStatus(req.Status); err != nil {
		writeAppError(w, errors.InvalidState(err.Error()))
		return
	}
	if err := h.repo.Save(r.Context(), c); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
