// Package callback models the CallbackConfiguration aggregate: a webhook
// definition and its ACTIVE/PAUSED/DISABLED/FAILED state machine. This is
// the aggregate the dispatcher and event router read on every dispatch, and
// the one the circuit breaker registry keys breakers by.
package callback

import (
	"fmt"
	"time"

	"github.com/webhookd/engine/pkg/types/common"
)

// Method is the HTTP method used to deliver the callback.
type Method string

const (
	MethodPOST  Method = "POST"
	MethodPUT   Method = "PUT"
	MethodPATCH Method = "PATCH"
)

// Status is the CallbackConfiguration lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusDisabled Status = "DISABLED"
	StatusFailed   Status = "FAILED"
)

// allowedTransitions enumerates the status transitions an operator (or the
// auto-pause/auto-resume rules) may make. DISABLED and FAILED are terminal
// from the automatic state machine's perspective — only an explicit operator
// UpdateStatus(StatusActive) call brings a configuration back from either.
var allowedTransitions = map[Status][]Status{
	StatusActive:   {StatusPaused, StatusDisabled, StatusFailed},
	StatusPaused:   {StatusActive, StatusDisabled, StatusFailed},
	StatusDisabled: {StatusActive},
	StatusFailed:   {StatusActive},
}

const (
	maxRetriesLimit    = 10
	minRetryDelayMs    = 100
	maxRetryDelayMs    = 300000
	minBackoffMult     = 1.0
	maxBackoffMult     = 10.0
	minTimeoutMs       = 1000
	maxTimeoutMs       = 300000
	minFailureThresh   = 1
	maxFailureThresh   = 100
	maxURLLength       = 2048
	defaultSigHeader   = "X-Signature"
)

// CallbackConfiguration is a webhook definition: where to send events matched
// by subscribed_event_types, how to authenticate and retry, and the
// failure-threshold state machine governing auto-pause.
type CallbackConfiguration struct {
	common.BaseEntity

	Name                  string
	URL                   string
	Method                Method
	Status                Status
	SubscribedEventTypes  []string
	CustomHeaders         map[string]string
	Metadata              common.Metadata // never sent on the wire
	SignatureEnabled      bool
	Secret                []byte
	SignatureHeader       string
	MaxRetries            int
	RetryDelayMs          int
	RetryBackoffMultiplier float64
	TimeoutMs             int
	FilterExpression      string
	FailureThreshold      int
	FailureCount          int
	LastSuccessAt         *time.Time
	LastFailureAt         *time.Time
	Active                bool

	events []DomainEvent
}

// NewCallbackConfiguration validates and constructs a new CallbackConfiguration.
func NewCallbackConfiguration(
	name, url string,
	method Method,
	subscribedEventTypes []string,
	customHeaders map[string]string,
	metadata common.Metadata,
	signatureEnabled bool,
	secret []byte,
	signatureHeader string,
	maxRetries int,
	retryDelayMs int,
	retryBackoffMultiplier float64,
	timeoutMs int,
	filterExpression string,
	failureThreshold int,
	active bool,
	createdBy common.UserID,
) (*CallbackConfiguration, error) {
	if name == "" {
		return nil, fmt.Errorf("callback_configuration: name must not be empty")
	}
	if url == "" || len(url) > maxURLLength {
		return nil, fmt.Errorf("callback_configuration: url must be non-empty and ≤ %d chars", maxURLLength)
	}
	switch method {
	case MethodPOST, MethodPUT, MethodPATCH:
	default:
		return nil, fmt.Errorf("callback_configuration: method must be POST, PUT, or PATCH, got %q", method)
	}
	if len(subscribedEventTypes) == 0 {
		return nil, fmt.Errorf("callback_configuration: subscribed_event_types must contain at least one pattern")
	}
	if signatureEnabled && len(secret) == 0 {
		return nil, fmt.Errorf("callback_configuration: secret is required when signature_enabled=true")
	}
	if maxRetries < 0 || maxRetries > maxRetriesLimit {
		return nil, fmt.Errorf("callback_configuration: max_retries must be in [0,%d], got %d", maxRetriesLimit, maxRetries)
	}
	if retryDelayMs < minRetryDelayMs || retryDelayMs > maxRetryDelayMs {
		return nil, fmt.Errorf("callback_configuration: retry_delay_ms must be in [%d,%d], got %d", minRetryDelayMs, maxRetryDelayMs, retryDelayMs)
	}
	if retryBackoffMultiplier < minBackoffMult || retryBackoffMultiplier > maxBackoffMult {
		return nil, fmt.Errorf("callback_configuration: retry_backoff_multiplier must be in [%.1f,%.1f], got %f", minBackoffMult, maxBackoffMult, retryBackoffMultiplier)
	}
	if timeoutMs < minTimeoutMs || timeoutMs > maxTimeoutMs {
		return nil, fmt.Errorf("callback_configuration: timeout_ms must be in [%d,%d], got %d", minTimeoutMs, maxTimeoutMs, timeoutMs)
	}
	if failureThreshold < minFailureThresh || failureThreshold > maxFailureThresh {
		return nil, fmt.Errorf("callback_configuration: failure_threshold must be in [%d,%d], got %d", minFailureThresh, maxFailureThresh, failureThreshold)
	}

	header := signatureHeader
	if header == "" {
		header = defaultSigHeader
	}

	headersCopy := make(map[string]string, len(customHeaders))
	for k, v := range customHeaders {
		headersCopy[k] = v
	}
	metaCopy := make(common.Metadata, len(metadata))
	for k, v := range metadata {
		metaCopy[k] = v
	}

	c := &CallbackConfiguration{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedBy: createdBy,
		},
		Name:                   name,
		URL:                    url,
		Method:                 method,
		Status:                 StatusActive,
		SubscribedEventTypes:   append([]string(nil), subscribedEventTypes...),
		CustomHeaders:          headersCopy,
		Metadata:               metaCopy,
		SignatureEnabled:       signatureEnabled,
		Secret:                 append([]byte(nil), secret...),
		SignatureHeader:        header,
		MaxRetries:             maxRetries,
		RetryDelayMs:           retryDelayMs,
		RetryBackoffMultiplier: retryBackoffMultiplier,
		TimeoutMs:              timeoutMs,
		FilterExpression:       filterExpression,
		FailureThreshold:       failureThreshold,
		Active:                 active,
	}
	c.touch()
	c.recordEvent(NewConfigurationCreatedEvent(c))
	return c, nil
}

// IsEligible reports whether this configuration may currently fire: it must
// be active and in ACTIVE status.
func (c *CallbackConfiguration) IsEligible() bool {
	return c.Active && c.Status == StatusActive
}

// RecordSuccess resets the failure counter and reactivates a PAUSED
// configuration.
func (c *CallbackConfiguration) RecordSuccess() {
	now := time.Now().UTC()
	c.LastSuccessAt = &now
	c.FailureCount = 0
	if c.Status == StatusPaused {
		c.Status = StatusActive
		c.recordEvent(NewConfigurationResumedEvent(c))
	}
	c.touch()
}

// RecordFailure increments the failure counter and auto-pauses an ACTIVE
// configuration once the threshold is met.
func (c *CallbackConfiguration) RecordFailure() {
	now := time.Now().UTC()
	c.LastFailureAt = &now
	c.FailureCount++
	if c.FailureCount >= c.FailureThreshold && c.Status == StatusActive {
		c.Status = StatusPaused
		c.recordEvent(NewConfigurationAutoPausedEvent(c))
	}
	c.touch()
}

// UpdateStatus performs an operator-driven status transition, validated
// against allowedTransitions.
func (c *CallbackConfiguration) UpdateStatus(next Status) error {
	if next == c.Status {
		return nil
	}
	allowed := allowedTransitions[c.Status]
	ok := false
	for _, s := range allowed {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("callback_configuration: transition %s → %s is not allowed", c.Status, next)
	}
	c.Status = next
	if next == StatusActive {
		c.FailureCount = 0
	}
	c.touch()
	c.recordEvent(NewConfigurationStatusChangedEvent(c))
	return nil
}

func (c *CallbackConfiguration) touch() {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Version++
}

func (c *CallbackConfiguration) recordEvent(e DomainEvent) {
	c.events = append(c.events, e)
}

// Events drains and returns all domain events recorded since the last drain.
func (c *CallbackConfiguration) Events() []DomainEvent {
	ev := c.events
	c.events = nil
	return ev
}
