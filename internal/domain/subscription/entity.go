// Package subscription models the Subscription aggregate: a durable binding
// between a broker topic/queue and the Event Router. Subscription lifecycle
// transitions are the sole signal the Dynamic Consumer Manager uses to
// decide when a logical consumer must be started or torn down.
package subscription

import (
	"fmt"
	"time"

	"github.com/webhookd/engine/pkg/types/common"
)

// BrokerKind identifies the supported broker driver for a Subscription.
type BrokerKind string

const (
	// BrokerKindKafka is the only broker kind the core is required to support.
	BrokerKindKafka BrokerKind = "KAFKA"
)

const (
	minConcurrentConsumersLimit = 1
	maxConcurrentConsumersLimit = 100

	minPollingIntervalMs = 100
	maxPollingIntervalMs = 60000
)

// Subscription is a broker binding: it tells the Consumer Manager where to
// read events from and tells the Router which event-type patterns the bound
// topic is expected to carry.
type Subscription struct {
	common.BaseEntity

	Name                   string
	BrokerKind             BrokerKind
	ConnectionConfig       map[string]string
	TopicOrQueue           string
	ConsumerGroupID        string
	EventTypePatterns      []string // ordered glob patterns; empty ⇒ accept-all
	MaxConcurrentConsumers int
	PollingIntervalMs      int
	Active                 bool

	TotalMessagesReceived int64
	TotalMessagesFailed   int64

	events []DomainEvent
}

// NewSubscription validates and constructs a new Subscription. Guards are
// evaluated in declaration order, name first.
func NewSubscription(
	name string,
	brokerKind BrokerKind,
	connectionConfig map[string]string,
	topicOrQueue string,
	consumerGroupID string,
	eventTypePatterns []string,
	maxConcurrentConsumers int,
	pollingIntervalMs int,
	active bool,
	createdBy common.UserID,
) (*Subscription, error) {
	if name == "" {
		return nil, fmt.Errorf("subscription: name must not be empty")
	}
	if brokerKind != BrokerKindKafka {
		return nil, fmt.Errorf("subscription: unsupported broker_kind %q", brokerKind)
	}
	if topicOrQueue == "" {
		return nil, fmt.Errorf("subscription: topic_or_queue must not be empty")
	}
	if active && len(connectionConfig) == 0 {
		return nil, fmt.Errorf("subscription: connection_config must be non-empty when active=true")
	}
	if maxConcurrentConsumers < minConcurrentConsumersLimit || maxConcurrentConsumers > maxConcurrentConsumersLimit {
		return nil, fmt.Errorf("subscription: max_concurrent_consumers must be in [%d,%d], got %d",
			minConcurrentConsumersLimit, maxConcurrentConsumersLimit, maxConcurrentConsumers)
	}
	if pollingIntervalMs < minPollingIntervalMs || pollingIntervalMs > maxPollingIntervalMs {
		return nil, fmt.Errorf("subscription: polling_interval_ms must be in [%d,%d], got %d",
			minPollingIntervalMs, maxPollingIntervalMs, pollingIntervalMs)
	}

	cfgCopy := make(map[string]string, len(connectionConfig))
	for k, v := range connectionConfig {
		cfgCopy[k] = v
	}
	patternsCopy := append([]string(nil), eventTypePatterns...)

	s := &Subscription{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedBy: createdBy,
		},
		Name:                   name,
		BrokerKind:             brokerKind,
		ConnectionConfig:       cfgCopy,
		TopicOrQueue:           topicOrQueue,
		ConsumerGroupID:        consumerGroupID,
		EventTypePatterns:      patternsCopy,
		MaxConcurrentConsumers: maxConcurrentConsumers,
		PollingIntervalMs:      pollingIntervalMs,
		Active:                 active,
	}
	s.touch()
	s.recordEvent(NewSubscriptionCreatedEvent(s))
	return s, nil
}

// BindingChanged reports whether topic/connection/group/patterns differ from
// prev — any of these differences obligates the Consumer Manager to tear
// down and re-register the consumer.
func (s *Subscription) BindingChanged(prev *Subscription) bool {
	if prev == nil {
		return true
	}
	if s.TopicOrQueue != prev.TopicOrQueue || s.ConsumerGroupID != prev.ConsumerGroupID {
		return true
	}
	if len(s.EventTypePatterns) != len(prev.EventTypePatterns) {
		return true
	}
	for i, p := range s.EventTypePatterns {
		if prev.EventTypePatterns[i] != p {
			return true
		}
	}
	if len(s.ConnectionConfig) != len(prev.ConnectionConfig) {
		return true
	}
	for k, v := range s.ConnectionConfig {
		if prev.ConnectionConfig[k] != v {
			return true
		}
	}
	return false
}

// Activate flips Active to true, recording a creation-equivalent event for
// the Consumer Manager to pick up.
func (s *Subscription) Activate() {
	if s.Active {
		return
	}
	s.Active = true
	s.touch()
	s.recordEvent(NewSubscriptionActivatedEvent(s))
}

// Deactivate flips Active to false, obligating teardown of any running consumer.
func (s *Subscription) Deactivate() {
	if !s.Active {
		return
	}
	s.Active = false
	s.touch()
	s.recordEvent(NewSubscriptionDeactivatedEvent(s))
}

// IncrementReceived bumps the received-message counter by one.
func (s *Subscription) IncrementReceived() {
	s.TotalMessagesReceived++
}

// IncrementFailed bumps the failed-message counter by one.
func (s *Subscription) IncrementFailed() {
	s.TotalMessagesFailed++
}

// touch bumps UpdatedAt and the optimistic-lock Version counter.
func (s *Subscription) touch() {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.Version++
}

// recordEvent appends a domain event to the pending-drain buffer.
func (s *Subscription) recordEvent(e DomainEvent) {
	s.events = append(s.events, e)
}

// Events drains and returns all domain events recorded since the last drain.
func (s *Subscription) Events() []DomainEvent {
	ev := s.events
	s.events = nil
	return ev
}
