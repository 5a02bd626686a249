package repositories

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webhookd/engine/internal/core/pattern"
	"github.com/webhookd/engine/internal/domain/callback"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	appErrors "github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// CallbackConfigurationRepository is the PostgreSQL implementation of
// callback.Repository.
type CallbackConfigurationRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewCallbackConfigurationRepository constructs a ready-to-use CallbackConfigurationRepository.
func NewCallbackConfigurationRepository(pool *pgxpool.Pool, logger logging.Logger) *CallbackConfigurationRepository {
	return &CallbackConfigurationRepository{pool: pool, logger: logger}
}

const callbackConfigurationColumns = `
	id, name, url, method, status, subscribed_event_types, custom_headers, metadata,
	signature_enabled, secret, signature_header, max_retries, retry_delay_ms,
	retry_backoff_multiplier, timeout_ms, filter_expression, failure_threshold,
	failure_count, last_success_at, last_failure_at, active,
	created_at, updated_at, created_by, version`

// Save upserts a CallbackConfiguration under optimistic locking.
func (r *CallbackConfigurationRepository) Save(ctx context.Context, c *callback.CallbackConfiguration) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO callback_configurations (`+callbackConfigurationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		ON CONFLICT (id) DO UPDATE SET
			name=$2, url=$3, method=$4, status=$5, subscribed_event_types=$6,
			custom_headers=$7, metadata=$8, signature_enabled=$9, secret=$10,
			signature_header=$11, max_retries=$12, retry_delay_ms=$13,
			retry_backoff_multiplier=$14, timeout_ms=$15, filter_expression=$16,
			failure_threshold=$17, failure_count=$18, last_success_at=$19,
			last_failure_at=$20, active=$21, updated_at=$23, version=$25
		WHERE callback_configurations.version = $25 - 1`,
		c.ID, c.Name, c.URL, c.Method, c.Status, c.SubscribedEventTypes, c.CustomHeaders, c.Metadata,
		c.SignatureEnabled, c.Secret, c.SignatureHeader, c.MaxRetries, c.RetryDelayMs,
		c.RetryBackoffMultiplier, c.TimeoutMs, c.FilterExpression, c.FailureThreshold,
		c.FailureCount, c.LastSuccessAt, c.LastFailureAt, c.Active,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.Version,
	)
	if err != nil {
		r.logger.Error("callback_repo: save failed", logging.Err(err), logging.String("id", string(c.ID)))
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to upsert callback_configuration")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.CodeConflict, "optimistic lock conflict on callback_configuration")
	}
	return nil
}

// FindByID loads a CallbackConfiguration by id.
func (r *CallbackConfigurationRepository) FindByID(ctx context.Context, id common.ID) (*callback.CallbackConfiguration, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+callbackConfigurationColumns+` FROM callback_configurations WHERE id=$1`, id)
	return r.scan(row)
}

// Delete removes a CallbackConfiguration row.
func (r *CallbackConfigurationRepository) Delete(ctx context.Context, id common.ID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM callback_configurations WHERE id=$1`, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to delete callback_configuration")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.Wrap(callback.ErrNotFound, appErrors.CodeNotFound, "callback configuration not found")
	}
	return nil
}

// List returns a page of all callback configurations for the admin surface.
func (r *CallbackConfigurationRepository) List(ctx context.Context, req common.PageRequest) (common.PageResponse[*callback.CallbackConfiguration], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM callback_configurations`).Scan(&total); err != nil {
		return common.PageResponse[*callback.CallbackConfiguration]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to count callback_configurations")
	}

	sortCol := sanitiseSortColumn(req.SortBy, callbackConfigurationSortColumns)
	sortDir := "ASC"
	if strings.EqualFold(req.SortOrder, "desc") {
		sortDir = "DESC"
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+callbackConfigurationColumns+` FROM callback_configurations ORDER BY `+sortCol+` `+sortDir+` LIMIT $1 OFFSET $2`,
		req.PageSize, req.Offset())
	if err != nil {
		return common.PageResponse[*callback.CallbackConfiguration]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to list callback_configurations")
	}
	defer rows.Close()

	items, err := r.scanAll(rows)
	if err != nil {
		return common.PageResponse[*callback.CallbackConfiguration]{}, err
	}
	return common.NewPageResponse(items, total, req), nil
}

// ActiveConfigsForEventType loads every active+ACTIVE configuration and
// filters in Go via pattern.AnyMatches, since glob matching against an
// ordered pattern list has no natural SQL expression. The candidate set is
// bounded by "active AND status='ACTIVE'", so this scales with the number of
// live configurations, not the full table.
func (r *CallbackConfigurationRepository) ActiveConfigsForEventType(ctx context.Context, eventType string) ([]*callback.CallbackConfiguration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+callbackConfigurationColumns+` FROM callback_configurations WHERE active = true AND status = $1`,
		callback.StatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to query active callback_configurations")
	}
	defer rows.Close()

	candidates, err := r.scanAll(rows)
	if err != nil {
		return nil, err
	}

	matched := make([]*callback.CallbackConfiguration, 0, len(candidates))
	for _, c := range candidates {
		if pattern.AnyMatches(c.SubscribedEventTypes, eventType) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// RecordSuccess is a single-row update: reset the failure counter and, if
// paused, reactivate.
func (r *CallbackConfigurationRepository) RecordSuccess(ctx context.Context, id common.ID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE callback_configurations
		SET failure_count = 0,
		    last_success_at = now(),
		    status = CASE WHEN status = $2 THEN $3 ELSE status END,
		    updated_at = now(),
		    version = version + 1
		WHERE id = $1`,
		id, callback.StatusPaused, callback.StatusActive)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to record callback success")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.Wrap(callback.ErrNotFound, appErrors.CodeNotFound, "callback configuration not found")
	}
	return nil
}

// RecordFailure is a single-row update: increment the failure counter,
// auto-pause once failure_threshold is reached, and return the
// updated row so the caller can react to an auto-pause transition.
func (r *CallbackConfigurationRepository) RecordFailure(ctx context.Context, id common.ID) (*callback.CallbackConfiguration, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE callback_configurations
		SET failure_count = failure_count + 1,
		    last_failure_at = now(),
		    status = CASE
		        WHEN status = $2 AND failure_count + 1 >= failure_threshold THEN $3
		        ELSE status
		    END,
		    updated_at = now(),
		    version = version + 1
		WHERE id = $1
		RETURNING `+callbackConfigurationColumns,
		id, callback.StatusActive, callback.StatusPaused)
	c, err := r.scan(row)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var callbackConfigurationSortColumns = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"status":     "status",
}

func (r *CallbackConfigurationRepository) scan(row pgx.Row) (*callback.CallbackConfiguration, error) {
	var c callback.CallbackConfiguration
	err := row.Scan(
		&c.ID, &c.Name, &c.URL, &c.Method, &c.Status, &c.SubscribedEventTypes, &c.CustomHeaders, &c.Metadata,
		&c.SignatureEnabled, &c.Secret, &c.SignatureHeader, &c.MaxRetries, &c.RetryDelayMs,
		&c.RetryBackoffMultiplier, &c.TimeoutMs, &c.FilterExpression, &c.FailureThreshold,
		&c.FailureCount, &c.LastSuccessAt, &c.LastFailureAt, &c.Active,
		&c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.Version,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.Wrap(callback.ErrNotFound, appErrors.CodeNotFound, "callback configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan callback_configuration row")
	}
	return &c, nil
}

func (r *CallbackConfigurationRepository) scanAll(rows pgx.Rows) ([]*callback.CallbackConfiguration, error) {
	var out []*callback.CallbackConfiguration
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed while iterating callback_configuration rows")
	}
	return out, nil
}
