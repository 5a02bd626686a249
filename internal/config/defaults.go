// Package config provides configuration loading, defaults, and validation for
// the webhook delivery engine.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "webhookd"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker = "localhost:9092"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// DefaultMaxRetryDelay is the default for dispatch.max_retry_delay. The
	// dispatcher does not read that setting: it caps retry backoff with its
	// own fixed 60s limit.
	DefaultMaxRetryDelay = 60 * time.Second

	// DefaultMaxInMemoryBody bounds how much of an upstream response body is
	// read into memory before classification.
	DefaultMaxInMemoryBody = 10 << 20

	DefaultShutdownDeadline = 30 * time.Second

	DefaultPositiveCacheTTL = 30 * time.Second
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills each zero-value field that has an engine default.
// Fields without one (for example database.user and the passwords) are left
// as they are. Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownDeadline
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultPositiveCacheTTL
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── Breaker defaults ────────────────────────────────────────────────────
	if cfg.Breaker.WindowSize == 0 {
		cfg.Breaker.WindowSize = 10
	}
	if cfg.Breaker.MinimumCalls == 0 {
		cfg.Breaker.MinimumCalls = 10
	}
	if cfg.Breaker.FailureRateThreshold == 0 {
		cfg.Breaker.FailureRateThreshold = 0.5
	}
	if cfg.Breaker.SlowCallDuration == 0 {
		cfg.Breaker.SlowCallDuration = 10 * time.Second
	}
	if cfg.Breaker.SlowCallRateThreshold == 0 {
		cfg.Breaker.SlowCallRateThreshold = 0.5
	}
	if cfg.Breaker.OpenWaitMin == 0 {
		cfg.Breaker.OpenWaitMin = 30 * time.Second
	}
	if cfg.Breaker.OpenWaitMax == 0 {
		cfg.Breaker.OpenWaitMax = 60 * time.Second
	}
	if cfg.Breaker.HalfOpenPermittedCalls == 0 {
		cfg.Breaker.HalfOpenPermittedCalls = 1
	}

	// ── Dispatch ──────────────────────────────────────────────────────────────
	if cfg.Dispatch.MaxRetryDelay == 0 {
		cfg.Dispatch.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if cfg.Dispatch.MaxInMemoryBody == 0 {
		cfg.Dispatch.MaxInMemoryBody = DefaultMaxInMemoryBody
	}
	if cfg.Dispatch.HTTPIdleConnTimeout == 0 {
		cfg.Dispatch.HTTPIdleConnTimeout = 90 * time.Second
	}
	if cfg.Dispatch.HTTPMaxIdleConns == 0 {
		cfg.Dispatch.HTTPMaxIdleConns = 100
	}

	// ── Consumer ──────────────────────────────────────────────────────────────
	if cfg.Consumer.ShutdownDeadline == 0 {
		cfg.Consumer.ShutdownDeadline = DefaultShutdownDeadline
	}

	// ── Authorizer ────────────────────────────────────────────────────────────
	if cfg.Authorizer.PositiveCacheTTL == 0 {
		cfg.Authorizer.PositiveCacheTTL = DefaultPositiveCacheTTL
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
