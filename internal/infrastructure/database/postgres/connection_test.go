// Package postgres_test provides unit and integration tests for the PostgreSQL
// connection management functionality.
//
// Integration tests (build tag "integration") spin up a real PostgreSQL
// instance via testcontainers-go.
package postgres_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/webhookd/engine/internal/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// DatabaseConfig field behavior exercised by buildConnString/configurePool
// ─────────────────────────────────────────────────────────────────────────────
// buildConnString and configurePool are unexported; their observable behavior
// is exercised end-to-end by the integration tests in
// connection_integration_test.go. These unit tests
// pin down the DatabaseConfig shape the connection layer depends on.

func TestDatabaseConfig_FieldsUsedByConnString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{
			name: "standard production config",
			cfg: config.DatabaseConfig{
				Host:     "postgres.example.com",
				Port:     5432,
				User:     "webhookd",
				Password: "secret123",
				DBName:   "webhookd_prod",
				SSLMode:  "require",
			},
		},
		{
			name: "localhost development config",
			cfg: config.DatabaseConfig{
				Host:     "localhost",
				Port:     5433,
				User:     "dev",
				Password: "devpass",
				DBName:   "webhookd_dev",
				SSLMode:  "disable",
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.NotEmpty(t, tc.cfg.Host)
			assert.NotEmpty(t, tc.cfg.User)
			assert.NotEmpty(t, tc.cfg.DBName)
		})
	}
}

func TestDatabaseConfig_PoolTunables(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		MaxConns:        50,
		MinConns:        10,
		ConnMaxLifetime: 2 * time.Hour,
		ConnMaxIdleTime: 45 * time.Minute,
	}

	assert.Equal(t, 50, cfg.MaxConns)
	assert.Equal(t, 10, cfg.MinConns)
	assert.Equal(t, 2*time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 45*time.Minute, cfg.ConnMaxIdleTime)
}

func TestDatabaseConfig_ZeroValuesMeanUseDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		Host:   "localhost",
		Port:   5432,
		User:   "test",
		DBName: "test",
	}

	assert.Equal(t, 0, cfg.MaxConns)
	assert.Equal(t, 0, cfg.MinConns)
	assert.Equal(t, time.Duration(0), cfg.ConnMaxLifetime)
}
