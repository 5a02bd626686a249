package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8080
  mode: release
database:
  host: "localhost"
  port: 5432
  user: "user"
  password: "password"
  db_name: "webhookd"
  max_conns: 25
redis:
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
breaker:
  window_size: 10
  minimum_calls: 10
  failure_rate_threshold: 0.5
  slow_call_duration: 10s
  slow_call_rate_threshold: 0.5
  open_wait_min: 30s
  open_wait_max: 60s
  half_open_permitted_calls: 1
dispatch:
  max_retry_delay: 60s
consumer:
  shutdown_deadline: 30s
log:
  level: info
  format: json
`

func createTempConfigFile(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func setEnvVars(t *testing.T, vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range vars {
			os.Unsetenv(k)
		}
	})
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load("non_existent_config.yaml")
	assert.Error(t, err)
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	invalidConfig := `
server:
  port: 0
  mode: release
`
	path := createTempConfigFile(t, invalidConfig)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	setEnvVars(t, map[string]string{
		"WEBHOOKD_SERVER_PORT": "9999",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_EnvOverride_NestedKey(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	setEnvVars(t, map[string]string{
		"WEBHOOKD_DATABASE_HOST": "db-host",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db-host", cfg.Database.Host)
}

func TestLoad_DefaultValues(t *testing.T) {
	minimalYAML := `
server:
  port: 8080
  mode: release
database:
  host: "localhost"
  port: 5432
  user: "user"
  password: "password"
  db_name: "webhookd"
  max_conns: 25
redis:
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
dispatch:
  max_retry_delay: 60s
consumer:
  shutdown_deadline: 30s
`
	path := createTempConfigFile(t, minimalYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, 10, cfg.Breaker.WindowSize)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	setEnvVars(t, map[string]string{
		"WEBHOOKD_SERVER_PORT":          "8080",
		"WEBHOOKD_SERVER_MODE":          "release",
		"WEBHOOKD_DATABASE_HOST":        "localhost",
		"WEBHOOKD_DATABASE_PORT":        "5432",
		"WEBHOOKD_DATABASE_USER":        "user",
		"WEBHOOKD_DATABASE_PASSWORD":    "password",
		"WEBHOOKD_DATABASE_DB_NAME":     "webhookd",
		"WEBHOOKD_DATABASE_MAX_CONNS":   "25",
		"WEBHOOKD_REDIS_ADDR":           "localhost:6379",
		"WEBHOOKD_KAFKA_BROKERS":        "localhost:9092",
		"WEBHOOKD_DISPATCH_MAX_RETRY_DELAY":  "60s",
		"WEBHOOKD_CONSUMER_SHUTDOWN_DEADLINE": "30s",
		"WEBHOOKD_LOG_LEVEL":  "info",
		"WEBHOOKD_LOG_FORMAT": "json",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestMustLoad_Success(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() {
		MustLoad(path)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad("non_existent.yaml")
	})
}

func TestWatch_InvokesOnChangeOnModification(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	changed := make(chan *Config, 1)
	Watch(path, func(cfg *Config) {
		changed <- cfg
	})

	// Give the watcher goroutine time to start before mutating the file.
	time.Sleep(100 * time.Millisecond)

	updated := validConfigYAML + "\n# comment to trigger a write event\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 8080, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("onChange callback was not invoked within timeout")
	}
}
