// Command apiserver runs only the admin HTTP surface over the Config Store:
// CRUD endpoints for CallbackConfiguration, AuthorizedDomain, and
// Subscription, the read-only CallbackExecution audit trail, health probes,
// and a Prometheus scrape endpoint. It runs no Kafka consumers and no
// Consumer Manager, so subscription lifecycle changes made here reach a
// separately-running worker only when that worker restarts and recovers the
// active set; cmd/worker hosts the same admin surface in-process with the
// Manager notified immediately, and is the deployment to use when consumers
// must track admin mutations live.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webhookd/engine/internal/config"
	"github.com/webhookd/engine/internal/infrastructure/database/postgres"
	"github.com/webhookd/engine/internal/infrastructure/database/postgres/repositories"
	"github.com/webhookd/engine/internal/infrastructure/database/redis"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/webhookd/engine/internal/interfaces/http"
	"github.com/webhookd/engine/internal/interfaces/http/handlers"
	"github.com/webhookd/engine/internal/interfaces/http/middleware"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (falls back to WEBHOOKD_* env vars)")
	flag.Parse()

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            logging.LevelInfo,
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", logging.Err(err))
	}

	if appLogger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      logOutputPaths(cfg.Log.Output),
		ErrorOutputPaths: []string{"stderr"},
		EnableCaller:     cfg.Log.EnableCaller,
		EnableStacktrace: cfg.Log.EnableStacktrace,
	}); err != nil {
		logger.Fatal("failed to initialize logger from loaded configuration", logging.Err(err))
	} else {
		logger = appLogger
	}

	logger.Info("starting apiserver",
		logging.String("version", version),
		logging.String("commit", gitCommit),
		logging.Int("port", cfg.Server.Port),
	)

	pool, err := postgres.NewConnectionPool(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", logging.Err(err))
	}
	defer postgres.Close(pool)

	redisClient, err := redis.NewClient(&redis.RedisConfig{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", logging.Err(err))
	}
	defer redisClient.Close()

	callbackRepo := repositories.NewCallbackConfigurationRepository(pool, logger)
	domainRepo := repositories.NewAuthorizedDomainRepository(pool, logger)
	subscriptionRepo := repositories.NewSubscriptionRepository(pool, logger)
	executionRepo := repositories.NewCallbackExecutionRepository(pool, logger)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "webhookd",
		Subsystem:            "apiserver",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize metrics collector", logging.Err(err))
	}
	metrics := prometheus.NewAppMetrics(collector)

	healthHandler := handlers.NewHealthHandler(version,
		dbHealthChecker{pool: pool},
		redisHealthChecker{client: redisClient},
	)

	routerCfg := httpserver.RouterConfig{
		HealthHandler:       healthHandler,
		CallbackHandler:     handlers.NewCallbackHandler(callbackRepo),
		AuthDomainHandler:   handlers.NewAuthDomainHandler(domainRepo),
		SubscriptionHandler: handlers.NewSubscriptionHandler(subscriptionRepo, nil),
		ExecutionHandler:    handlers.NewExecutionHandler(executionRepo),
		CORSMiddleware:      middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()),
		MetricsHandler:      collector.Handler(),
		AppMetrics:          metrics,
		Logger:              logger,
		MaxBodyBytes:        cfg.Server.MaxBodySize,
	}
	handler := httpserver.NewRouter(routerCfg)

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server exited with error", logging.Err(err))
	}

	logger.Info("apiserver stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

// logOutputPaths adapts LogConfig.Output's single-value convenience field
// to the zap-backed logger's OutputPaths slice, defaulting to stdout.
func logOutputPaths(output string) []string {
	if output == "" {
		return []string{"stdout"}
	}
	return []string{output}
}

// dbHealthChecker wraps the Postgres health query for the readiness handler.
type dbHealthChecker struct {
	pool *pgxpool.Pool
}

func (d dbHealthChecker) Name() string { return "postgres" }
func (d dbHealthChecker) Check(ctx context.Context) error {
	return postgres.HealthCheck(ctx, d.pool)
}

// redisHealthChecker wraps a Ping for the readiness handler.
type redisHealthChecker struct {
	client *redis.Client
}

func (r redisHealthChecker) Name() string { return "redis" }
func (r redisHealthChecker) Check(ctx context.Context) error {
	return r.client.Ping(ctx)
}
