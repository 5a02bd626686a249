//go:build integration

package repositories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webhookd/engine/internal/domain/callback"
	"github.com/webhookd/engine/internal/infrastructure/database/postgres/repositories"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/pkg/types/common"
)

func newTestCallbackConfiguration(t *testing.T, name string, eventTypes []string, failureThreshold int) *callback.CallbackConfiguration {
	t.Helper()
	c, err := callback.NewCallbackConfiguration(
		name,
		"https://example.com/hooks/"+name,
		callback.MethodPOST,
		eventTypes,
		map[string]string{"X-Source": "webhookd"},
		common.Metadata{"owner": "test"},
		true,
		[]byte("s3cr3t"),
		"",
		3,
		1000,
		2.0,
		5000,
		"",
		failureThreshold,
		true,
		common.UserID("test-user"),
	)
	require.NoError(t, err)
	return c
}

func TestCallbackConfigurationRepository_SaveAndFindByID(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewCallbackConfigurationRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	c := newTestCallbackConfiguration(t, "cfg001", []string{"order.*"}, 5)
	require.NoError(t, repo.Save(ctx, c))

	found, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.URL, found.URL)
	assert.Equal(t, c.SubscribedEventTypes, found.SubscribedEventTypes)
	assert.Equal(t, callback.StatusActive, found.Status)
}

func TestCallbackConfigurationRepository_ActiveConfigsForEventType(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewCallbackConfigurationRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	matching := newTestCallbackConfiguration(t, "cfg002", []string{"order.*"}, 5)
	nonMatching := newTestCallbackConfiguration(t, "cfg003", []string{"payment.*"}, 5)
	require.NoError(t, repo.Save(ctx, matching))
	require.NoError(t, repo.Save(ctx, nonMatching))

	results, err := repo.ActiveConfigsForEventType(ctx, "order.created")
	require.NoError(t, err)

	ids := make([]common.ID, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, matching.ID)
	assert.NotContains(t, ids, nonMatching.ID)
}

func TestCallbackConfigurationRepository_RecordSuccessReactivatesPaused(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewCallbackConfigurationRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	c := newTestCallbackConfiguration(t, "cfg004", []string{"order.*"}, 1)
	require.NoError(t, repo.Save(ctx, c))

	updated, err := repo.RecordFailure(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, callback.StatusPaused, updated.Status)
	assert.Equal(t, 1, updated.FailureCount)

	require.NoError(t, repo.RecordSuccess(ctx, c.ID))

	found, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, callback.StatusActive, found.Status)
	assert.Equal(t, 0, found.FailureCount)
}

func TestCallbackConfigurationRepository_RecordFailureAutoPauses(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewCallbackConfigurationRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	c := newTestCallbackConfiguration(t, "cfg005", []string{"order.*"}, 2)
	require.NoError(t, repo.Save(ctx, c))

	updated, err := repo.RecordFailure(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, callback.StatusActive, updated.Status)
	assert.Equal(t, 1, updated.FailureCount)

	updated, err = repo.RecordFailure(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, callback.StatusPaused, updated.Status)
	assert.Equal(t, 2, updated.FailureCount)
}

func TestCallbackConfigurationRepository_Delete(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewCallbackConfigurationRepository(pool, logging.NewNopLogger())
	ctx := context.Background()

	c := newTestCallbackConfiguration(t, "cfg006", []string{"order.*"}, 5)
	require.NoError(t, repo.Save(ctx, c))
	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err := repo.FindByID(ctx, c.ID)
	require.Error(t, err)
}
