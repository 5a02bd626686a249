package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webhookd/engine/internal/domain/execution"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	appErrors "github.com/webhookd/engine/pkg/errors"
	"github.com/webhookd/engine/pkg/types/common"
)

// CallbackExecutionRepository is the PostgreSQL implementation of
// execution.Repository.
type CallbackExecutionRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewCallbackExecutionRepository constructs a ready-to-use CallbackExecutionRepository.
func NewCallbackExecutionRepository(pool *pgxpool.Pool, logger logging.Logger) *CallbackExecutionRepository {
	return &CallbackExecutionRepository{pool: pool, logger: logger}
}

const callbackExecutionColumns = `
	id, configuration_id, event_type, source_event_id, status, attempt_number,
	max_attempts, request_payload, request_headers, response_headers, response_body,
	response_status_code, request_duration_ms, error_message, next_retry_at,
	executed_at, completed_at`

// Append inserts one attempt row. Executions are append-per-attempt, so
// this is always an INSERT, never an upsert.
func (r *CallbackExecutionRepository) Append(ctx context.Context, e *execution.CallbackExecution) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO callback_executions (`+callbackExecutionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		e.ID, e.ConfigurationID, e.EventType, e.SourceEventID, e.Status, e.AttemptNumber,
		e.MaxAttempts, e.RequestPayload, e.RequestHeaders, e.ResponseHeaders, e.ResponseBody,
		e.ResponseStatusCode, e.RequestDurationMs, e.ErrorMessage, e.NextRetryAt,
		e.ExecutedAt, e.CompletedAt,
	)
	if err != nil {
		r.logger.Error("execution_repo: append failed", logging.Err(err), logging.String("id", string(e.ID)))
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to append callback_execution")
	}
	return nil
}

// Update closes out an execution row the Dispatcher previously appended
// (e.g. after an async flush), never mutating across attempts.
func (r *CallbackExecutionRepository) Update(ctx context.Context, e *execution.CallbackExecution) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE callback_executions
		SET status=$2, response_headers=$3, response_body=$4, response_status_code=$5,
		    request_duration_ms=$6, error_message=$7, next_retry_at=$8, completed_at=$9
		WHERE id = $1`,
		e.ID, e.Status, e.ResponseHeaders, e.ResponseBody, e.ResponseStatusCode,
		e.RequestDurationMs, e.ErrorMessage, e.NextRetryAt, e.CompletedAt,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to update callback_execution")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.New(appErrors.CodeNotFound, "callback execution not found")
	}
	return nil
}

// FindByID loads one execution row by id.
func (r *CallbackExecutionRepository) FindByID(ctx context.Context, id common.ID) (*execution.CallbackExecution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+callbackExecutionColumns+` FROM callback_executions WHERE id=$1`, id)
	return r.scan(row)
}

// ListByConfiguration returns a page of attempt rows for one configuration,
// most recent first, for the admin read path.
func (r *CallbackExecutionRepository) ListByConfiguration(ctx context.Context, configurationID common.ID, req common.PageRequest) (common.PageResponse[*execution.CallbackExecution], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM callback_executions WHERE configuration_id=$1`, configurationID).Scan(&total); err != nil {
		return common.PageResponse[*execution.CallbackExecution]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to count callback_executions")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+callbackExecutionColumns+` FROM callback_executions WHERE configuration_id=$1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3`,
		configurationID, req.PageSize, req.Offset())
	if err != nil {
		return common.PageResponse[*execution.CallbackExecution]{}, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to list callback_executions")
	}
	defer rows.Close()

	items, err := r.scanAll(rows)
	if err != nil {
		return common.PageResponse[*execution.CallbackExecution]{}, err
	}
	return common.NewPageResponse(items, total, req), nil
}

func (r *CallbackExecutionRepository) scan(row pgx.Row) (*execution.CallbackExecution, error) {
	var e execution.CallbackExecution
	err := row.Scan(
		&e.ID, &e.ConfigurationID, &e.EventType, &e.SourceEventID, &e.Status, &e.AttemptNumber,
		&e.MaxAttempts, &e.RequestPayload, &e.RequestHeaders, &e.ResponseHeaders, &e.ResponseBody,
		&e.ResponseStatusCode, &e.RequestDurationMs, &e.ErrorMessage, &e.NextRetryAt,
		&e.ExecutedAt, &e.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.New(appErrors.CodeNotFound, "callback execution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan callback_execution row")
	}
	return &e, nil
}

func (r *CallbackExecutionRepository) scanAll(rows pgx.Rows) ([]*execution.CallbackExecution, error) {
	var out []*execution.CallbackExecution
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed while iterating callback_execution rows")
	}
	return out, nil
}
