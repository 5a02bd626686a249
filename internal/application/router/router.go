// Package router resolves, for each incoming event, the set of callback
// configurations whose event-type patterns match, applies per-configuration
// payload filters, and fans out dispatch concurrently.
package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/webhookd/engine/internal/core/pattern"
	"github.com/webhookd/engine/internal/domain/callback"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
)

// Dispatch is the subset of the Dispatcher's API the Router depends on; kept
// as an interface so the router can be tested without building a real
// Dispatcher/Breaker/HTTP stack.
type Dispatch interface {
	Dispatch(ctx context.Context, cfg *callback.CallbackConfiguration, eventType, sourceEventID string, payload []byte) error
}

// Envelope is the normalized broker message the Consumer Manager hands to
// the Router. Event type and source event id are derived from the payload
// and headers, not carried separately.
type Envelope struct {
	PayloadJSON []byte
	Headers     map[string]string
}

// defaultMaxConcurrentDispatch bounds per-event fan-out when the caller
// doesn't override it.
const defaultMaxConcurrentDispatch = 100

// Router fans an event out to every matching configuration.
type Router struct {
	configs    callback.Repository
	dispatcher Dispatch
	log        logging.Logger
	sem        chan struct{}
}

// New constructs a Router. maxConcurrent ≤ 0 selects defaultMaxConcurrentDispatch.
func New(configs callback.Repository, dispatcher Dispatch, maxConcurrent int, log logging.Logger) *Router {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentDispatch
	}
	return &Router{
		configs:    configs,
		dispatcher: dispatcher,
		log:        log,
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// Route matches, filters, and dispatches one event, returning the number of
// dispatches it started. It returns only after every dispatch it started has
// terminated, so the Consumer Manager may safely commit the broker offset
// immediately on return.
func (r *Router) Route(ctx context.Context, env Envelope) int {
	eventType, sourceEventID := deriveEnvelopeFields(env)

	configs, err := r.configs.ActiveConfigsForEventType(ctx, eventType)
	if err != nil {
		r.log.Error("router: active_configs_for_event_type failed", logging.Err(err), logging.String("event_type", eventType))
		return 0
	}
	if len(configs) == 0 {
		return 0
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(env.PayloadJSON, &payload); err != nil {
		// Fail open. An unparsable payload still dispatches to every
		// configuration with no filter_expression; configurations that do
		// filter simply never match it.
		payload = nil
	}

	var wg sync.WaitGroup
	started := 0
	for _, cfg := range configs {
		cfg := cfg
		if cfg.FilterExpression != "" {
			if payload == nil || !pattern.EvaluateFilter(cfg.FilterExpression, payload) {
				continue
			}
		}

		r.sem <- struct{}{}
		wg.Add(1)
		started++
		go func() {
			defer wg.Done()
			defer func() { <-r.sem }()
			if err := r.dispatcher.Dispatch(ctx, cfg, eventType, sourceEventID, env.PayloadJSON); err != nil {
				r.log.Error("router: dispatch failed", logging.Err(err),
					logging.String("configuration_id", string(cfg.ID)), logging.String("event_type", eventType))
			}
		}()
	}
	wg.Wait()
	return started
}

// deriveEnvelopeFields derives event_type and source_event_id from the
// payload body, falling back to headers, then to defaults.
func deriveEnvelopeFields(env Envelope) (eventType, sourceEventID string) {
	var payload map[string]interface{}
	_ = json.Unmarshal(env.PayloadJSON, &payload)

	eventType = firstNonEmptyString(payload, "eventType", "type", "@type")
	if eventType == "" {
		eventType = firstNonEmptyHeader(env.Headers, "eventType", "event-type", "type")
	}
	if eventType == "" {
		eventType = "unknown.event"
	}

	sourceEventID = firstUUIDField(payload, "eventId", "id")
	if sourceEventID == "" {
		sourceEventID = firstUUIDHeader(env.Headers, "eventId", "event-id")
	}
	if sourceEventID == "" {
		sourceEventID = uuid.New().String()
	}
	return eventType, sourceEventID
}

func firstNonEmptyString(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNonEmptyHeader(headers map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := headers[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func firstUUIDField(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok {
				if _, err := uuid.Parse(s); err == nil {
					return s
				}
			}
		}
	}
	return ""
}

func firstUUIDHeader(headers map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := headers[k]; ok {
			if _, err := uuid.Parse(v); err == nil {
				return v
			}
		}
	}
	return ""
}
