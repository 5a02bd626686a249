//go:build integration

// Package repositories_test provides integration tests for the PostgreSQL
// repository implementations. Tests require Docker and are gated behind the
// "integration" build tag.
package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a PostgreSQL 16 container with the full engine
// schema applied and returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "webhookd_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/webhookd_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applySchema(t, pool)
	return pool
}

// applySchema mirrors migrations/000001..000004 so the integration tests stay
// in lockstep with the real schema without invoking golang-migrate itself.
func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	ddl := `
	CREATE TABLE IF NOT EXISTS authorized_domains (
		id                        UUID PRIMARY KEY,
		domain                    TEXT NOT NULL,
		verified                  BOOLEAN NOT NULL DEFAULT false,
		active                    BOOLEAN NOT NULL DEFAULT true,
		allowed_paths             TEXT[] NOT NULL DEFAULT '{}',
		require_https             BOOLEAN NOT NULL DEFAULT true,
		expires_at                TIMESTAMPTZ,
		ip_whitelist              TEXT[] NOT NULL DEFAULT '{}',
		max_callbacks_per_minute  INTEGER NOT NULL DEFAULT 0,
		total_callbacks           BIGINT NOT NULL DEFAULT 0,
		total_failed              BIGINT NOT NULL DEFAULT 0,
		last_callback_at          TIMESTAMPTZ,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by                TEXT,
		version                   INTEGER NOT NULL DEFAULT 1
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_authorized_domains_domain_lower ON authorized_domains (lower(domain));

	CREATE TABLE IF NOT EXISTS callback_configurations (
		id                         UUID PRIMARY KEY,
		name                       TEXT NOT NULL,
		url                        TEXT NOT NULL,
		method                     TEXT NOT NULL,
		status                     TEXT NOT NULL,
		subscribed_event_types     TEXT[] NOT NULL,
		custom_headers             JSONB NOT NULL DEFAULT '{}',
		metadata                   JSONB NOT NULL DEFAULT '{}',
		signature_enabled          BOOLEAN NOT NULL DEFAULT false,
		secret                     BYTEA,
		signature_header           TEXT NOT NULL DEFAULT 'X-Signature',
		max_retries                INTEGER NOT NULL DEFAULT 3,
		retry_delay_ms             INTEGER NOT NULL DEFAULT 1000,
		retry_backoff_multiplier   DOUBLE PRECISION NOT NULL DEFAULT 2.0,
		timeout_ms                 INTEGER NOT NULL DEFAULT 10000,
		filter_expression          TEXT NOT NULL DEFAULT '',
		failure_threshold          INTEGER NOT NULL DEFAULT 5,
		failure_count              INTEGER NOT NULL DEFAULT 0,
		last_success_at            TIMESTAMPTZ,
		last_failure_at            TIMESTAMPTZ,
		active                     BOOLEAN NOT NULL DEFAULT true,
		created_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by                 TEXT,
		version                    INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS callback_executions (
		id                     UUID PRIMARY KEY,
		configuration_id       UUID NOT NULL REFERENCES callback_configurations (id) ON DELETE CASCADE,
		event_type             TEXT NOT NULL,
		source_event_id        TEXT NOT NULL,
		status                 TEXT NOT NULL,
		attempt_number         INTEGER NOT NULL,
		max_attempts           INTEGER NOT NULL,
		request_payload        BYTEA,
		request_headers        JSONB NOT NULL DEFAULT '{}',
		response_headers       JSONB,
		response_body          TEXT NOT NULL DEFAULT '',
		response_status_code   INTEGER NOT NULL DEFAULT 0,
		request_duration_ms    BIGINT NOT NULL DEFAULT 0,
		error_message          TEXT NOT NULL DEFAULT '',
		next_retry_at          TIMESTAMPTZ,
		executed_at            TIMESTAMPTZ NOT NULL,
		completed_at           TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id                          UUID PRIMARY KEY,
		name                        TEXT NOT NULL,
		broker_kind                 TEXT NOT NULL,
		connection_config           JSONB NOT NULL DEFAULT '{}',
		topic_or_queue              TEXT NOT NULL,
		consumer_group_id           TEXT NOT NULL DEFAULT '',
		event_type_patterns         TEXT[] NOT NULL DEFAULT '{}',
		max_concurrent_consumers    INTEGER NOT NULL DEFAULT 1,
		polling_interval_ms         INTEGER NOT NULL DEFAULT 1000,
		active                      BOOLEAN NOT NULL DEFAULT true,
		total_messages_received     BIGINT NOT NULL DEFAULT 0,
		total_messages_failed       BIGINT NOT NULL DEFAULT 0,
		created_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by                  TEXT,
		version                     INTEGER NOT NULL DEFAULT 1
	);
	`
	_, err := pool.Exec(ctx, ddl)
	require.NoError(t, err)
}
