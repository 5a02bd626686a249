package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webhookd/engine/internal/domain/subscription"
	"github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

type fakeSubscriptionHandlerRepository struct {
	byID map[common.ID]*subscription.Subscription
}

func newFakeSubscriptionHandlerRepository() *fakeSubscriptionHandlerRepository {
	return &fakeSubscriptionHandlerRepository{byID: make(map[common.ID]*subscription.Subscription)}
}

func (f *fakeSubscriptionHandlerRepository) Save(_ context.Context, s *subscription.Subscription) error {
	f.byID[s.ID] = s
	return nil
}

func (f *fakeSubscriptionHandlerRepository) FindByID(_ context.Context, id common.ID) (*subscription.Subscription, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, errors.NotFound("subscription not found")
	}
	return s, nil
}

func (f *fakeSubscriptionHandlerRepository) Delete(_ context.Context, id common.ID) error {
	if _, ok := f.byID[id]; !ok {
		return errors.NotFound("subscription not found")
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeSubscriptionHandlerRepository) ListActive(context.Context) ([]*subscription.Subscription, error) {
	panic("unused")
}

func (f *fakeSubscriptionHandlerRepository) List(context.Context, common.PageRequest) (common.PageResponse[*subscription.Subscription], error) {
	var items []*subscription.Subscription
	for _, s := range f.byID {
		items = append(items, s)
	}
	return common.PageResponse[*subscription.Subscription]{Items: items, Total: int64(len(items))}, nil
}

func (f *fakeSubscriptionHandlerRepository) IncrementReceived(context.Context, common.ID) error {
	panic("unused")
}
func (f *fakeSubscriptionHandlerRepository) IncrementFailed(context.Context, common.ID) error {
	panic("unused")
}

func validSubscriptionEntity(t *testing.T) *subscription.Subscription {
	t.Helper()
	s, err := subscription.NewSubscription(
		"orders-topic", subscription.BrokerKindKafka,
		map[string]string{"brokers": "localhost:9092"}, "orders", "engine-group",
		[]string{"order.*"}, 5, 1000, true, "",
	)
	require.NoError(t, err)
	return s
}

func TestSubscriptionHandler_Create_Success(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	h := NewSubscriptionHandler(repo, nil)

	body, _ := json.Marshal(createSubscriptionRequest{
		Name:                   "orders-topic",
		BrokerKind:             subscription.BrokerKindKafka,
		ConnectionConfig:       map[string]string{"brokers": "localhost:9092"},
		TopicOrQueue:           "orders",
		ConsumerGroupID:        "engine-group",
		EventTypePatterns:      []string{"order.*"},
		MaxConcurrentConsumers: 5,
		PollingIntervalMs:      1000,
		Active:                 true,
	})
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, repo.byID, 1)
}

func TestSubscriptionHandler_Create_UnsupportedBrokerKind(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	h := NewSubscriptionHandler(repo, nil)

	body, _ := json.Marshal(createSubscriptionRequest{
		Name: "orders-topic", BrokerKind: "RABBITMQ", TopicOrQueue: "orders",
		MaxConcurrentConsumers: 5, PollingIntervalMs: 1000,
	})
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.byID)
}

func TestSubscriptionHandler_Activate_Deactivate(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	s := validSubscriptionEntity(t)
	s.Deactivate()
	repo.byID[s.ID] = s
	h := NewSubscriptionHandler(repo, nil)

	r := requestWithURLParam(http.MethodPost, "/subscriptions/"+string(s.ID)+"/activate", nil, "id", string(s.ID))
	rec := httptest.NewRecorder()
	h.Activate(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.byID[s.ID].Active)

	r = requestWithURLParam(http.MethodPost, "/subscriptions/"+string(s.ID)+"/deactivate", nil, "id", string(s.ID))
	rec = httptest.NewRecorder()
	h.Deactivate(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, repo.byID[s.ID].Active)
}

func TestSubscriptionHandler_Activate_NotFound(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	h := NewSubscriptionHandler(repo, nil)

	r := requestWithURLParam(http.MethodPost, "/subscriptions/missing/activate", nil, "id", "missing")
	rec := httptest.NewRecorder()
	h.Activate(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionHandler_Delete(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	s := validSubscriptionEntity(t)
	repo.byID[s.ID] = s
	h := NewSubscriptionHandler(repo, nil)

	r := requestWithURLParam(http.MethodDelete, "/subscriptions/"+string(s.ID), nil, "id", string(s.ID))
	rec := httptest.NewRecorder()
	h.Delete(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.byID)
}

func TestSubscriptionHandler_List(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	s := validSubscriptionEntity(t)
	repo.byID[s.ID] = s
	h := NewSubscriptionHandler(repo, nil)

	r := httptest.NewRequest(http.MethodGet, "/subscriptions?page=1&page_size=10", nil)
	rec := httptest.NewRecorder()
	h.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp common.PageResponse[*subscription.Subscription]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.Total)
}

// recordingNotifier captures the lifecycle hooks the handler fires after
// each persisted mutation.
type recordingNotifier struct {
	created []*subscription.Subscription
	updated [][2]*subscription.Subscription
	deleted []*subscription.Subscription
}

func (n *recordingNotifier) OnSubscriptionCreated(s *subscription.Subscription) {
	n.created = append(n.created, s)
}

func (n *recordingNotifier) OnSubscriptionUpdated(prev, next *subscription.Subscription) {
	n.updated = append(n.updated, [2]*subscription.Subscription{prev, next})
}

func (n *recordingNotifier) OnSubscriptionDeleted(s *subscription.Subscription) {
	n.deleted = append(n.deleted, s)
}

func TestSubscriptionHandler_Create_NotifiesManager(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	notifier := &recordingNotifier{}
	h := NewSubscriptionHandler(repo, notifier)

	body, _ := json.Marshal(createSubscriptionRequest{
		Name:                   "orders-topic",
		BrokerKind:             subscription.BrokerKindKafka,
		ConnectionConfig:       map[string]string{"brokers": "localhost:9092"},
		TopicOrQueue:           "orders",
		EventTypePatterns:      []string{"order.*"},
		MaxConcurrentConsumers: 5,
		PollingIntervalMs:      1000,
		Active:                 true,
	})
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, notifier.created, 1)
	assert.True(t, notifier.created[0].Active)
}

func TestSubscriptionHandler_Create_InvalidDoesNotNotify(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	notifier := &recordingNotifier{}
	h := NewSubscriptionHandler(repo, notifier)

	body, _ := json.Marshal(createSubscriptionRequest{
		Name: "orders-topic", BrokerKind: "RABBITMQ", TopicOrQueue: "orders",
		MaxConcurrentConsumers: 5, PollingIntervalMs: 1000,
	})
	r := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, notifier.created)
}

func TestSubscriptionHandler_Activate_NotifiesWithPrevAndNext(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	s := validSubscriptionEntity(t)
	s.Deactivate()
	repo.byID[s.ID] = s
	notifier := &recordingNotifier{}
	h := NewSubscriptionHandler(repo, notifier)

	r := requestWithURLParam(http.MethodPost, "/subscriptions/"+string(s.ID)+"/activate", nil, "id", string(s.ID))
	rec := httptest.NewRecorder()
	h.Activate(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifier.updated, 1)
	prev, next := notifier.updated[0][0], notifier.updated[0][1]
	assert.False(t, prev.Active, "prev must carry the pre-mutation state")
	assert.True(t, next.Active)
}

func TestSubscriptionHandler_Delete_NotifiesManager(t *testing.T) {
	repo := newFakeSubscriptionHandlerRepository()
	s := validSubscriptionEntity(t)
	repo.byID[s.ID] = s
	notifier := &recordingNotifier{}
	h := NewSubscriptionHandler(repo, notifier)

	r := requestWithURLParam(http.MethodDelete, "/subscriptions/"+string(s.ID), nil, "id", string(s.ID))
	rec := httptest.NewRecorder()
	h.Delete(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, notifier.deleted, 1)
	assert.Equal(t, s.ID, notifier.deleted[0].ID)
}
