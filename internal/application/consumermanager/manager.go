// Package consumermanager maintains the invariant that every active
// Subscription has exactly one running logical consumer, and no consumer
// runs for an inactive or deleted one.
package consumermanager

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/webhookd/engine/internal/application/router"
	"github.com/webhookd/engine/internal/domain/subscription"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// BrokerConsumer is the subset of the broker driver's API the Manager
// depends on; the Kafka adapter (internal/infrastructure/messaging/kafka)
// implements this.
type BrokerConsumer interface {
	Run(ctx context.Context, handle func(ctx context.Context, payload []byte, headers map[string]string) error) error
	Close() error
}

// ConsumerFactory builds a BrokerConsumer for a subscription's binding.
// KAFKA is the only broker kind shipped today; a factory may reject
// unsupported kinds.
type ConsumerFactory func(sub *subscription.Subscription) (BrokerConsumer, error)

// Router is the subset of the Event Router's API the Manager depends on.
type Router interface {
	Route(ctx context.Context, env router.Envelope) int
}

// defaultShutdownDeadline bounds graceful shutdown when config leaves it unset.
const defaultShutdownDeadline = 30 * time.Second

type runningConsumer struct {
	sub      *subscription.Subscription
	consumer BrokerConsumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager owns the id → running-consumer registry.
type Manager struct {
	subscriptions    subscription.Repository
	router           Router
	factory          ConsumerFactory
	log              logging.Logger
	shutdownDeadline time.Duration

	mu      sync.Mutex
	running map[common.ID]*runningConsumer
}

// New constructs a Manager. shutdownDeadline ≤ 0 selects defaultShutdownDeadline.
func New(subs subscription.Repository, r Router, factory ConsumerFactory, shutdownDeadline time.Duration, log logging.Logger) *Manager {
	if shutdownDeadline <= 0 {
		shutdownDeadline = defaultShutdownDeadline
	}
	return &Manager{
		subscriptions:    subs,
		router:           r,
		factory:          factory,
		log:              log,
		shutdownDeadline: shutdownDeadline,
		running:          make(map[common.ID]*runningConsumer),
	}
}

// Start recovers the registry from every currently-active subscription in
// the store, registering one consumer each.
func (m *Manager) Start(ctx context.Context) error {
	subs, err := m.subscriptions.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, s := range subs {
		m.register(s)
	}
	return nil
}

// Shutdown unregisters every running consumer, waiting up to the shutdown
// deadline for in-flight router calls to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := make([]*runningConsumer, 0, len(m.running))
	for id, rc := range m.running {
		entries = append(entries, rc)
		delete(m.running, id)
	}
	m.mu.Unlock()

	for _, rc := range entries {
		rc.cancel()
	}

	deadline := time.After(m.shutdownDeadline)
	for _, rc := range entries {
		select {
		case <-rc.done:
		case <-deadline:
			m.log.Warn("consumer manager: shutdown deadline exceeded, abandoning consumer",
				logging.String("subscription_id", string(rc.sub.ID)))
		}
		_ = rc.consumer.Close()
	}
}

// OnSubscriptionCreated registers a consumer for a newly created active
// subscription. Idempotent: a second call for an already-running id is a no-op.
func (m *Manager) OnSubscriptionCreated(s *subscription.Subscription) {
	if !s.Active {
		return
	}
	m.register(s)
}

// OnSubscriptionUpdated handles a subscription update: a binding-affecting
// change on an active subscription tears down and re-registers; an
// active:true→false flip only tears down; active:false→true registers if
// previously absent.
func (m *Manager) OnSubscriptionUpdated(prev, next *subscription.Subscription) {
	m.mu.Lock()
	_, wasRunning := m.running[next.ID]
	m.mu.Unlock()

	if !next.Active {
		if wasRunning {
			m.unregister(next.ID)
		}
		return
	}

	if !wasRunning {
		m.register(next)
		return
	}

	if next.BindingChanged(prev) {
		m.unregister(next.ID)
		m.register(next)
	}
}

// OnSubscriptionDeleted tears down any running consumer for the deleted subscription.
func (m *Manager) OnSubscriptionDeleted(s *subscription.Subscription) {
	m.unregister(s.ID)
}

func (m *Manager) register(s *subscription.Subscription) {
	m.mu.Lock()
	if _, exists := m.running[s.ID]; exists {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	consumer, err := m.factory(s)
	if err != nil {
		m.log.Error("consumer manager: failed to build consumer", logging.Err(err),
			logging.String("subscription_id", string(s.ID)))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rc := &runningConsumer{sub: s, consumer: consumer, cancel: cancel, done: make(chan struct{})}

	// The factory call above ran unlocked; a concurrent register for the
	// same id may have won in the meantime. Re-check before inserting so at
	// most one consumer ever runs per id, and discard the loser's consumer.
	m.mu.Lock()
	if _, exists := m.running[s.ID]; exists {
		m.mu.Unlock()
		cancel()
		_ = consumer.Close()
		return
	}
	m.running[s.ID] = rc
	m.mu.Unlock()

	go m.runConsumer(ctx, rc)
}

func (m *Manager) unregister(id common.ID) {
	m.mu.Lock()
	rc, exists := m.running[id]
	if exists {
		delete(m.running, id)
	}
	m.mu.Unlock()
	if !exists {
		return
	}
	rc.cancel()
	<-rc.done
	_ = rc.consumer.Close()
}

func (m *Manager) runConsumer(ctx context.Context, rc *runningConsumer) {
	defer close(rc.done)

	handle := func(ctx context.Context, payload []byte, headers map[string]string) error {
		if !json.Valid(payload) {
			if err := m.subscriptions.IncrementFailed(ctx, rc.sub.ID); err != nil {
				m.log.Error("consumer manager: increment_failed store error", logging.Err(err))
			}
			// Returned so the broker adapter may dead-letter the raw
			// message before committing; never a signal to retry — the
			// offset is committed regardless.
			return errors.New(errors.CodeDeserializationError, "consumer manager: message is not valid JSON")
		}
		m.router.Route(ctx, router.Envelope{PayloadJSON: payload, Headers: headers})
		if err := m.subscriptions.IncrementReceived(ctx, rc.sub.ID); err != nil {
			m.log.Error("consumer manager: increment_received store error", logging.Err(err))
		}
		return nil
	}

	if err := rc.consumer.Run(ctx, handle); err != nil {
		m.log.Error("consumer manager: consumer run exited with error", logging.Err(err),
			logging.String("subscription_id", string(rc.sub.ID)))
	}
}
