package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webhookd/engine/internal/domain/authdomain"
	"github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// AuthDomainHandler exposes CRUD endpoints over AuthorizedDomain, the
// whitelist the Domain Authorizer consults before any dispatch.
type AuthDomainHandler struct {
	repo authdomain.Repository
}

// NewAuthDomainHandler creates a new AuthDomainHandler.
func NewAuthDomainHandler(repo authdomain.Repository) *AuthDomainHandler {
	return &AuthDomainHandler{repo: repo}
}

type createAuthDomainRequest struct {
	Domain                string     `json:"domain"`
	Verified              bool       `json:"verified"`
	Active                bool       `json:"active"`
	AllowedPaths          []string   `json:"allowed_paths"`
	RequireHTTPS          bool       `json:"require_https"`
	ExpiresAt             *time.Time `json:"expires_at"`
	IPWhitelist           []string   `json:"ip_whitelist"`
	MaxCallbacksPerMinute int        `json:"max_callbacks_per_minute"`
}

// Create handles POST /authorized-domains.
func (h *AuthDomainHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAuthDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, errors.InvalidParam("malformed request body"))
		return
	}

	d, err := authdomain.NewAuthorizedDomain(
		req.Domain, req.Verified, req.Active, req.AllowedPaths, req.RequireHTTPS,
		req.ExpiresAt, req.IPWhitelist, req.MaxCallbacksPerMinute,
		common.UserID(getUserIDFromContext(r)),
	)
	if err != nil {
		writeAppError(w, errors.InvalidParam(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), d); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Get handles GET /authorized-domains/{id}.
func (h *AuthDomainHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	d, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// List handles GET /authorized-domains.
func (h *AuthDomainHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	resp, err := h.repo.List(r.Context(), common.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /authorized-domains/{id}.
func (h *AuthDomainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
