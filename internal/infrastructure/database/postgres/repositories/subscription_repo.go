// Package repositories provides PostgreSQL-backed implementations of every
// domain repository interface for the webhook delivery engine.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webhookd/engine/internal/domain/subscription"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	appErrors "github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// SubscriptionRepository is the PostgreSQL implementation of
// subscription.Repository.
type SubscriptionRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewSubscriptionRepository constructs a ready-to-use SubscriptionRepository.
func NewSubscriptionRepository(pool *pgxpool.Pool, logger logging.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool, logger: logger}
}

const subscriptionColumns = `
	id, name, broker_kind, connection_config, topic_or_queue, consumer_group_id,
	event_type_patterns, max_concurrent_consumers, polling_interval_ms, active,
	total_messages_received, total_messages_failed,
	created_at, updated_at, created_by, version`

// Save upserts a Subscription: an insert on first save, an optimistic-locked
// update thereafter.
func (r *SubscriptionRepository) Save(ctx context.Context, s *subscription.Subscription) error {
	connJSON, err := json.Marshal(s.ConnectionConfig)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeSerializationError, "failed to marshal connection_config")
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			name=$2, broker_kind=$3, connection_config=$4, topic_or_queue=$5,
			consumer_group_id=$6, event_type_patterns=$7, max_concurrent_consumers=$8,
			polling_interval_ms=$9, active=$10, total_messages_received=$11,
			total_messages_failed=$12, updated_at=$14, version=$16
		WHERE subscriptions.version = $16 - 1`,
		s.ID, s.Name, s.BrokerKind, connJSON, s.TopicOrQueue, s.ConsumerGroupID,
		s.EventTypePatterns, s.MaxConcurrentConsumers, s.PollingIntervalMs, s.Active,
		s.TotalMessagesReceived, s.TotalMessagesFailed,
		s.CreatedAt, s.UpdatedAt, s.CreatedBy, s.Version,
	)
	if err != nil {
		r.logger.Error("subscription_repo: save failed", logging.Err(err), logging.String("id", string(s.ID)))
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to upsert subscription")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.CodeConflict, "optimistic lock conflict on subscription").
			WithDetail(fmt.Sprintf("subscription_id=%s expected_version=%d", s.ID, s.Version))
	}
	return nil
}

// FindByID loads a Subscription by id.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id common.ID) (*subscription.Subscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id=$1`, id)
	return r.scan(row)
}

// Delete removes a Subscription row.
func (r *SubscriptionRepository) Delete(ctx context.Context, id common.ID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete subscription")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.Wrap(subscription.ErrNotFound, appErrors.CodeNotFound, "subscription not found")
	}
	return nil
}

// ListActive returns every subscription with active=true.
func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]*subscription.Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE active = true`)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to query active subscriptions")
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// List returns a page of all subscriptions for the admin surface.
func (r *SubscriptionRepository) List(ctx context.Context, req common.PageRequest) (common.PageResponse[*subscription.Subscription], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&total); err != nil {
		return common.PageResponse[*subscription.Subscription]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to count subscriptions")
	}

	sortCol := sanitiseSortColumn(req.SortBy, subscriptionSortColumns)
	sortDir := "ASC"
	if strings.EqualFold(req.SortOrder, "desc") {
		sortDir = "DESC"
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM subscriptions ORDER BY %s %s LIMIT $1 OFFSET $2`, subscriptionColumns, sortCol, sortDir),
		req.PageSize, req.Offset())
	if err != nil {
		return common.PageResponse[*subscription.Subscription]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to list subscriptions")
	}
	defer rows.Close()

	items, err := r.scanAll(rows)
	if err != nil {
		return common.PageResponse[*subscription.Subscription]{}, err
	}
	return common.NewPageResponse(items, total, req), nil
}

// IncrementReceived atomically bumps total_messages_received by one.
func (r *SubscriptionRepository) IncrementReceived(ctx context.Context, id common.ID) error {
	_, err := r.pool.Exec(ctx, `UPDATE subscriptions SET total_messages_received = total_messages_received + 1 WHERE id=$1`, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to increment total_messages_received")
	}
	return nil
}

// IncrementFailed atomically bumps total_messages_failed by one.
func (r *SubscriptionRepository) IncrementFailed(ctx context.Context, id common.ID) error {
	_, err := r.pool.Exec(ctx, `UPDATE subscriptions SET total_messages_failed = total_messages_failed + 1 WHERE id=$1`, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to increment total_messages_failed")
	}
	return nil
}

var subscriptionSortColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"active":     "active",
}

// sanitiseSortColumn maps a user-supplied sort field to a safe column name,
// defaulting to "created_at" for anything not in the allowlist.
func sanitiseSortColumn(col string, allowed map[string]string) string {
	if safe, ok := allowed[col]; ok {
		return safe
	}
	return "created_at"
}

func (r *SubscriptionRepository) scan(row pgx.Row) (*subscription.Subscription, error) {
	var s subscription.Subscription
	var connJSON []byte
	err := row.Scan(
		&s.ID, &s.Name, &s.BrokerKind, &connJSON, &s.TopicOrQueue, &s.ConsumerGroupID,
		&s.EventTypePatterns, &s.MaxConcurrentConsumers, &s.PollingIntervalMs, &s.Active,
		&s.TotalMessagesReceived, &s.TotalMessagesFailed,
		&s.CreatedAt, &s.UpdatedAt, &s.CreatedBy, &s.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.Wrap(subscription.ErrNotFound, appErrors.CodeNotFound, "subscription not found")
		}
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan subscription row")
	}
	if len(connJSON) > 0 {
		_ = json.Unmarshal(connJSON, &s.ConnectionConfig)
	}
	return &s, nil
}

func (r *SubscriptionRepository) scanAll(rows pgx.Rows) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed while iterating subscription rows")
	}
	return out, nil
}
