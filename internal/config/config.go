// Package config defines all configuration structures for the webhook
// delivery engine. No I/O or parsing logic lives here — only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds admin HTTP server tunables. The admin surface drives
// Config Store mutations and exposes health/metrics endpoints; it is not
// part of the tested delivery core.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the Config Store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the Domain Authorizer's
// positive-decision cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds broker connection parameters shared by every
// subscription's consumer. Per-subscription overrides (topic, group,
// polling interval) live on the Subscription entity itself, not here.
type KafkaConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	AutoOffsetReset   string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	SASLEnabled       bool          `mapstructure:"sasl_enabled"`
	SASLMechanism     string        `mapstructure:"sasl_mechanism"` // "plain" | "scram-sha-256" | "scram-sha-512"
	SASLUsername      string        `mapstructure:"sasl_username"`
	SASLPassword      string        `mapstructure:"sasl_password"`
	TLSEnabled        bool          `mapstructure:"tls_enabled"`
	DeadLetterEnabled bool          `mapstructure:"dead_letter_enabled"`
}

// BreakerConfig holds the process-wide circuit breaker defaults. A single
// table applies to every configuration_id's breaker.
type BreakerConfig struct {
	WindowSize            int           `mapstructure:"window_size"`
	MinimumCalls          int           `mapstructure:"minimum_calls"`
	FailureRateThreshold  float64       `mapstructure:"failure_rate_threshold"`
	SlowCallDuration      time.Duration `mapstructure:"slow_call_duration"`
	SlowCallRateThreshold float64       `mapstructure:"slow_call_rate_threshold"`
	OpenWaitMin           time.Duration `mapstructure:"open_wait_min"`
	OpenWaitMax           time.Duration `mapstructure:"open_wait_max"`
	HalfOpenPermittedCalls int          `mapstructure:"half_open_permitted_calls"`
}

// DispatchConfig holds process-wide knobs for the dispatcher. Per-config
// retry/timeout values (from CallbackConfiguration) always take precedence;
// these are fallbacks and hard caps.
type DispatchConfig struct {
	MaxRetryDelay     time.Duration `mapstructure:"max_retry_delay"`
	MaxInMemoryBody   int64         `mapstructure:"max_in_memory_body"`
	HTTPIdleConnTimeout time.Duration `mapstructure:"http_idle_conn_timeout"`
	HTTPMaxIdleConns  int           `mapstructure:"http_max_idle_conns"`
}

// ConsumerManagerConfig holds Dynamic Consumer Manager process knobs.
type ConsumerManagerConfig struct {
	ShutdownDeadline time.Duration `mapstructure:"shutdown_deadline"`
}

// AuthorizerConfig holds Domain Authorizer cache parameters.
type AuthorizerConfig struct {
	PositiveCacheTTL time.Duration `mapstructure:"positive_cache_ttl"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "console"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the engine. Every
// infrastructure component and application service reads its settings from
// the relevant sub-struct.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Database DatabaseConfig        `mapstructure:"database"`
	Redis    RedisConfig           `mapstructure:"redis"`
	Kafka    KafkaConfig           `mapstructure:"kafka"`
	Breaker  BreakerConfig         `mapstructure:"breaker"`
	Dispatch DispatchConfig        `mapstructure:"dispatch"`
	Consumer ConsumerManagerConfig `mapstructure:"consumer"`
	Authorizer AuthorizerConfig    `mapstructure:"authorizer"`
	Log      LogConfig             `mapstructure:"log"`
}

// Version is the engine's build-time version string, overridden via
// -ldflags by each cmd/ binary's own build variable where one exists (the
// worker binary has no separate build-version flag, so it reads this
// package-level default directly).
var Version = "dev"

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}

	// Breaker bounds.
	if c.Breaker.WindowSize < 1 {
		return fmt.Errorf("config: breaker.window_size must be ≥ 1, got %d", c.Breaker.WindowSize)
	}
	if c.Breaker.MinimumCalls < 1 {
		return fmt.Errorf("config: breaker.minimum_calls must be ≥ 1, got %d", c.Breaker.MinimumCalls)
	}
	if c.Breaker.FailureRateThreshold <= 0 || c.Breaker.FailureRateThreshold > 1 {
		return fmt.Errorf("config: breaker.failure_rate_threshold must be in (0, 1], got %f", c.Breaker.FailureRateThreshold)
	}
	if c.Breaker.OpenWaitMin <= 0 || c.Breaker.OpenWaitMax < c.Breaker.OpenWaitMin {
		return fmt.Errorf("config: breaker.open_wait_min/open_wait_max must satisfy 0 < min ≤ max")
	}
	if c.Breaker.HalfOpenPermittedCalls < 1 {
		return fmt.Errorf("config: breaker.half_open_permitted_calls must be ≥ 1, got %d", c.Breaker.HalfOpenPermittedCalls)
	}

	// Dispatch
	if c.Dispatch.MaxRetryDelay <= 0 {
		return fmt.Errorf("config: dispatch.max_retry_delay must be > 0")
	}

	// Consumer
	if c.Consumer.ShutdownDeadline <= 0 {
		return fmt.Errorf("config: consumer.shutdown_deadline must be > 0")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
