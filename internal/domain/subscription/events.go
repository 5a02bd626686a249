package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/webhookd/engine/pkg/types/common"
)

// EventType identifies the type of a Subscription domain event.
type EventType string

const (
	EventSubscriptionCreated     EventType = "subscription.created"
	EventSubscriptionActivated   EventType = "subscription.activated"
	EventSubscriptionDeactivated EventType = "subscription.deactivated"
	EventSubscriptionDeleted     EventType = "subscription.deleted"
)

// DomainEvent is the interface for all Subscription domain events.
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

func (e BaseEvent) EventID() string          { return e.id }
func (e BaseEvent) EventType() EventType      { return e.eventType }
func (e BaseEvent) AggregateID() common.ID    { return e.aggregateID }
func (e BaseEvent) OccurredAt() time.Time     { return e.occurredAt }

// SubscriptionCreatedEvent fires when a Subscription is first persisted.
type SubscriptionCreatedEvent struct {
	BaseEvent
	TopicOrQueue string
	Active       bool
}

func NewSubscriptionCreatedEvent(s *Subscription) *SubscriptionCreatedEvent {
	return &SubscriptionCreatedEvent{
		BaseEvent:    newBaseEvent(EventSubscriptionCreated, s.ID),
		TopicOrQueue: s.TopicOrQueue,
		Active:       s.Active,
	}
}

// SubscriptionActivatedEvent fires on a false→true Active transition.
type SubscriptionActivatedEvent struct {
	BaseEvent
}

func NewSubscriptionActivatedEvent(s *Subscription) *SubscriptionActivatedEvent {
	return &SubscriptionActivatedEvent{BaseEvent: newBaseEvent(EventSubscriptionActivated, s.ID)}
}

// SubscriptionDeactivatedEvent fires on a true→false Active transition.
type SubscriptionDeactivatedEvent struct {
	BaseEvent
}

func NewSubscriptionDeactivatedEvent(s *Subscription) *SubscriptionDeactivatedEvent {
	return &SubscriptionDeactivatedEvent{BaseEvent: newBaseEvent(EventSubscriptionDeactivated, s.ID)}
}

// SubscriptionDeletedEvent fires when a Subscription row is removed.
type SubscriptionDeletedEvent struct {
	BaseEvent
}

func NewSubscriptionDeletedEvent(id common.ID) *SubscriptionDeletedEvent {
	return &SubscriptionDeletedEvent{BaseEvent: newBaseEvent(EventSubscriptionDeleted, id)}
}
