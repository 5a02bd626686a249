package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webhookd/engine/internal/domain/subscription"
	"github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// SubscriptionNotifier receives subscription lifecycle changes after they
// are persisted, so the Consumer Manager running in the same process can
// start, restart, or tear down the corresponding consumer immediately.
// Implemented by consumermanager.Manager.
type SubscriptionNotifier interface {
	OnSubscriptionCreated(s *subscription.Subscription)
	OnSubscriptionUpdated(prev, next *subscription.Subscription)
	OnSubscriptionDeleted(s *subscription.Subscription)
}

// SubscriptionHandler exposes CRUD and activation endpoints over
// Subscription, the admin surface the Dynamic Consumer Manager
// reconciles its running consumers against.
type SubscriptionHandler struct {
	repo     subscription.Repository
	notifier SubscriptionNotifier
}

// NewSubscriptionHandler creates a new SubscriptionHandler. notifier may be
// nil when no Consumer Manager runs in this process; mutations are then
// picked up by a worker's startup recovery instead.
func NewSubscriptionHandler(repo subscription.Repository, notifier SubscriptionNotifier) *SubscriptionHandler {
	return &SubscriptionHandler{repo: repo, notifier: notifier}
}

type createSubscriptionRequest struct {
	Name                   string            `json:"name"`
	BrokerKind             subscription.BrokerKind `json:"broker_kind"`
	ConnectionConfig       map[string]string `json:"connection_config"`
	TopicOrQueue           string            `json:"topic_or_queue"`
	ConsumerGroupID        string            `json:"consumer_group_id"`
	EventTypePatterns      []string          `json:"event_type_patterns"`
	MaxConcurrentConsumers int               `json:"max_concurrent_consumers"`
	PollingIntervalMs      int               `json:"polling_interval_ms"`
	Active                 bool              `json:"active"`
}

// Create handles POST /subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, errors.InvalidParam("malformed request body"))
		return
	}

	s, err := subscription.NewSubscription(
		req.Name, req.BrokerKind, req.ConnectionConfig, req.TopicOrQueue, req.ConsumerGroupID,
		req.EventTypePatterns, req.MaxConcurrentConsumers, req.PollingIntervalMs, req.Active,
		common.UserID(getUserIDFromContext(r)),
	)
	if err != nil {
		writeAppError(w, errors.InvalidParam(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), s); err != nil {
		writeAppError(w, err)
		return
	}
	if h.notifier != nil {
		h.notifier.OnSubscriptionCreated(s)
	}
	writeJSON(w, http.StatusCreated, s)
}

// Get handles GET /subscriptions/{id}.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	s, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// List handles GET /subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	resp, err := h.repo.List(r.Context(), common.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /subscriptions/{id}.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	s, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	if h.notifier != nil {
		h.notifier.OnSubscriptionDeleted(s)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate handles POST /subscriptions/{id}/activate.
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /subscriptions/{id}/deactivate.
func (h *SubscriptionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *SubscriptionHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := common.ID(chi.URLParam(r, "id"))
	s, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	prevCopy := *s
	if active {
		s.Activate()
	} else {
		s.Deactivate()
	}
	if err := h.repo.Save(r.Context(), s); err != nil {
		writeAppError(w, err)
		return
	}
	if h.notifier != nil {
		h.notifier.OnSubscriptionUpdated(&prevCopy, s)
	}
	writeJSON(w, http.StatusOK, s)
}
