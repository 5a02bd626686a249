package callback

import (
	"time"

	"github.com/google/uuid"

	"github.com/webhookd/engine/pkg/types/common"
)

// EventType identifies the type of a CallbackConfiguration domain event.
type EventType string

const (
	EventConfigurationCreated       EventType = "callback_configuration.created"
	EventConfigurationStatusChanged EventType = "callback_configuration.status_changed"
	EventConfigurationAutoPaused    EventType = "callback_configuration.auto_paused"
	EventConfigurationResumed       EventType = "callback_configuration.resumed"
)

// DomainEvent is the interface for all CallbackConfiguration domain events.
type DomainEvent interface {
	EventID() string
	EventType() EventType
	AggregateID() common.ID
	OccurredAt() time.Time
}

// BaseEvent implements the common fields shared by every concrete event.
type BaseEvent struct {
	id          string
	eventType   EventType
	aggregateID common.ID
	occurredAt  time.Time
}

func newBaseEvent(eventType EventType, aggregateID common.ID) BaseEvent {
	return BaseEvent{
		id:          uuid.New().String(),
		eventType:   eventType,
		aggregateID: aggregateID,
		occurredAt:  time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() string       { return e.id }
func (e BaseEvent) EventType() EventType   { return e.eventType }
func (e BaseEvent) AggregateID() common.ID { return e.aggregateID }
func (e BaseEvent) OccurredAt() time.Time  { return e.occurredAt }

// ConfigurationCreatedEvent fires when a CallbackConfiguration is first persisted.
type ConfigurationCreatedEvent struct {
	BaseEvent
	URL string
}

func NewConfigurationCreatedEvent(c *CallbackConfiguration) *ConfigurationCreatedEvent {
	return &ConfigurationCreatedEvent{BaseEvent: newBaseEvent(EventConfigurationCreated, c.ID), URL: c.URL}
}

// ConfigurationStatusChangedEvent fires on any operator-driven status transition.
type ConfigurationStatusChangedEvent struct {
	BaseEvent
	NewStatus Status
}

func NewConfigurationStatusChangedEvent(c *CallbackConfiguration) *ConfigurationStatusChangedEvent {
	return &ConfigurationStatusChangedEvent{BaseEvent: newBaseEvent(EventConfigurationStatusChanged, c.ID), NewStatus: c.Status}
}

// ConfigurationAutoPausedEvent fires when failure_count ≥ failure_threshold
// auto-transitions ACTIVE → PAUSED.
type ConfigurationAutoPausedEvent struct {
	BaseEvent
	FailureCount int
}

func NewConfigurationAutoPausedEvent(c *CallbackConfiguration) *ConfigurationAutoPausedEvent {
	return &ConfigurationAutoPausedEvent{BaseEvent: newBaseEvent(EventConfigurationAutoPaused, c.ID), FailureCount: c.FailureCount}
}

// ConfigurationResumedEvent fires when a success on a PAUSED configuration
// reactivates it to ACTIVE.
type ConfigurationResumedEvent struct {
	BaseEvent
}

func NewConfigurationResumedEvent(c *CallbackConfiguration) *ConfigurationResumedEvent {
	return &ConfigurationResumedEvent{BaseEvent: newBaseEvent(EventConfigurationResumed, c.ID)}
}
