// Package handlers implements the admin HTTP surface for the webhook
// delivery engine: health probes and CRUD endpoints over subscriptions,
// authorized domains, callback configurations, and callback executions.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/webhookd/engine/internal/interfaces/http/middleware"
	"github.com/webhookd/engine/pkg/errors"
)

// getUserIDFromContext extracts the caller identity from request context (set by auth middleware).
func getUserIDFromContext(r *http.Request) string {
	return middleware.ContextGetUserID(r.Context())
}

// parsePagination extracts page and page_size from query parameters.
func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 20

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return page, pageSize
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, statusCode int, err error) {
	resp := ErrorResponse{
		Code:    http.StatusText(statusCode),
		Message: err.Error(),
	}
	writeJSON(w, statusCode, resp)
}

// writeAppError maps application-level errors to HTTP status codes using the
// ErrorCode carried by errors.AppError; unrecognised errors are reported as
// an opaque internal error to avoid leaking implementation details.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		writeError(w, http.StatusInternalServerError, errors.New(errors.CodeInternal, "internal server error"))
		return
	}
	writeError(w, code.HTTPStatus(), err)
}
