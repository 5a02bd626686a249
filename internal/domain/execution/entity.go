// Package execution models the CallbackExecution aggregate: one persisted
// attempt record. Executions are append-mostly audit rows written by the
// dispatcher; this package holds only the record shape and the
// truncation/validation rules, not any state machine.
package execution

import (
	"time"

	"github.com/webhookd/engine/pkg/types/common"
)

// Status is the terminal or in-flight state of one delivery attempt.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusSuccess         Status = "SUCCESS"
	StatusFailedRetrying  Status = "FAILED_RETRYING"
	StatusFailedPermanent Status = "FAILED_PERMANENT"
	StatusSkipped         Status = "SKIPPED"
)

// Terminal reports whether s is one of the statuses from which no further
// attempt rows will be appended for the same dispatch.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailedPermanent, StatusSkipped:
		return true
	default:
		return false
	}
}

const (
	// ResponseBodyCap bounds how much of a response body is persisted.
	ResponseBodyCap = 10000

	// ErrorMessageCap bounds the persisted error_message length.
	ErrorMessageCap = 2000
)

// CallbackExecution is one attempt record for a (CallbackConfiguration, event) dispatch.
type CallbackExecution struct {
	ID              common.ID
	ConfigurationID common.ID
	EventType       string
	SourceEventID   string

	Status       Status
	AttemptNumber int
	MaxAttempts   int

	RequestPayload  []byte
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	ResponseBody    string

	ResponseStatusCode int
	RequestDurationMs  int64
	ErrorMessage       string
	NextRetryAt        *time.Time

	ExecutedAt  time.Time
	CompletedAt *time.Time
}

// New constructs a new CallbackExecution row for one attempt. executedAt is
// the instant the attempt began; the caller marks it complete via Complete.
func New(configurationID common.ID, eventType, sourceEventID string, attemptNumber, maxAttempts int, requestPayload []byte, requestHeaders map[string]string) *CallbackExecution {
	return &CallbackExecution{
		ID:              common.NewID(),
		ConfigurationID: configurationID,
		EventType:       eventType,
		SourceEventID:   sourceEventID,
		Status:          StatusInProgress,
		AttemptNumber:   attemptNumber,
		MaxAttempts:     maxAttempts,
		RequestPayload:  requestPayload,
		RequestHeaders:  requestHeaders,
		ExecutedAt:      time.Now().UTC(),
	}
}

// Complete finalizes the execution row with the given terminal status,
// applying the response_body and error_message truncation caps. The
// completion timestamp is clamped so it never precedes ExecutedAt.
func (e *CallbackExecution) Complete(status Status, statusCode int, durationMs int64, responseHeaders map[string]string, responseBody, errorMessage string) {
	now := time.Now().UTC()
	if now.Before(e.ExecutedAt) {
		now = e.ExecutedAt
	}
	e.Status = status
	e.ResponseStatusCode = statusCode
	e.RequestDurationMs = durationMs
	e.ResponseHeaders = responseHeaders
	e.ResponseBody = truncate(responseBody, ResponseBodyCap)
	e.ErrorMessage = truncate(errorMessage, ErrorMessageCap)
	e.CompletedAt = &now
}

// ScheduleRetry marks the execution FAILED_RETRYING and records when the next
// attempt will fire.
func (e *CallbackExecution) ScheduleRetry(statusCode int, durationMs int64, errorMessage string, nextRetryAt time.Time) {
	e.Complete(StatusFailedRetrying, statusCode, durationMs, nil, "", errorMessage)
	e.NextRetryAt = &nextRetryAt
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
