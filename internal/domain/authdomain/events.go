package authdomain

import (
	"time"

	"github.com/google/uuid"

	"github.com/webhookd/engine/pkg/types/common"
)

// EventType identifies the type of an AuthorizedDomain domain event.
type EventType string

const (
	EventDomainRegistered EventType = "authorized_domain.registered"
	EventDomainActivated  EventType = "authorized_domain.activated"
	EventDomainRevoked    EventType = "authorized_domain.revoked"
)

// DomainEvent is the interface for all AuthorizedDomain domain events.
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

// DomainRegisteredEvent fires when an AuthorizedDomain is first persisted.
type DomainRegisteredEvent struct {
	BaseEvent
	Domain string
}

func NewDomainRegisteredEvent(d *AuthorizedDomain) *DomainRegisteredEvent {
	return &DomainRegisteredEvent{
		BaseEvent: newBaseEvent(EventDomainRegistered, d.ID),
		Domain:    d.Domain,
	}
}
