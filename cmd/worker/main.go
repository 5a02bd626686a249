// Command worker runs the complete webhook delivery engine in one process:
// it recovers the active Subscription set on startup, keeps exactly one
// running consumer per active Subscription, routes every consumed message to
// its matching CallbackConfigurations, and dispatches each match through the
// domain-authorized, circuit-broken HTTP delivery path. It also hosts the
// admin HTTP surface, wired to notify the Consumer Manager directly on every
// subscription lifecycle change, plus health probes and a Prometheus scrape
// endpoint. cmd/apiserver is the admin-only variant for deployments that
// keep the surface separate from delivery.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webhookd/engine/internal/application/authorizer"
	"github.com/webhookd/engine/internal/application/consumermanager"
	"github.com/webhookd/engine/internal/application/dispatcher"
	"github.com/webhookd/engine/internal/application/router"
	"github.com/webhookd/engine/internal/config"
	"github.com/webhookd/engine/internal/core/breaker"
	"github.com/webhookd/engine/internal/domain/subscription"
	"github.com/webhookd/engine/internal/infrastructure/database/postgres"
	"github.com/webhookd/engine/internal/infrastructure/database/postgres/repositories"
	"github.com/webhookd/engine/internal/infrastructure/database/redis"
	kafkaclient "github.com/webhookd/engine/internal/infrastructure/messaging/kafka"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/webhookd/engine/internal/interfaces/http"
	"github.com/webhookd/engine/internal/interfaces/http/handlers"
	"github.com/webhookd/engine/internal/interfaces/http/middleware"
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

	logger.Info("starting worker", logging.String("version", config.Version))

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
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", logging.Err(err))
	}
	defer redisClient.Close()
	redisCache := redis.NewRedisCache(redisClient, logger)

	callbackRepo := repositories.NewCallbackConfigurationRepository(pool, logger)
	domainRepo := repositories.NewAuthorizedDomainRepository(pool, logger)
	subscriptionRepo := repositories.NewSubscriptionRepository(pool, logger)
	executionRepo := repositories.NewCallbackExecutionRepository(pool, logger)

	authz := authorizer.New(domainRepo, redisCache, cfg.Authorizer.PositiveCacheTTL, logger)

	breakerRegistry := breaker.NewRegistry(breaker.Params{
		WindowSize:             cfg.Breaker.WindowSize,
		MinimumCalls:           cfg.Breaker.MinimumCalls,
		FailureRateThreshold:   cfg.Breaker.FailureRateThreshold,
		SlowCallDuration:       cfg.Breaker.SlowCallDuration,
		SlowCallRateThreshold:  cfg.Breaker.SlowCallRateThreshold,
		OpenWaitMin:            cfg.Breaker.OpenWaitMin,
		OpenWaitMax:            cfg.Breaker.OpenWaitMax,
		HalfOpenPermittedCalls: cfg.Breaker.HalfOpenPermittedCalls,
	})

	if *configPath != "" {
		config.Watch(*configPath, func(next *config.Config) {
			breakerRegistry.UpdateParams(breaker.Params{
				WindowSize:             next.Breaker.WindowSize,
				MinimumCalls:           next.Breaker.MinimumCalls,
				FailureRateThreshold:   next.Breaker.FailureRateThreshold,
				SlowCallDuration:       next.Breaker.SlowCallDuration,
				SlowCallRateThreshold:  next.Breaker.SlowCallRateThreshold,
				OpenWaitMin:            next.Breaker.OpenWaitMin,
				OpenWaitMax:            next.Breaker.OpenWaitMax,
				HalfOpenPermittedCalls: next.Breaker.HalfOpenPermittedCalls,
			})
			logger.Info("configuration reloaded; breaker defaults applied to new breakers")
		})
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:    cfg.Dispatch.HTTPMaxIdleConns,
			IdleConnTimeout: cfg.Dispatch.HTTPIdleConnTimeout,
		},
	}

	disp := dispatcher.New(authz, breakerRegistry, callbackRepo, executionRepo, domainRepo, httpClient, cfg.Dispatch.MaxInMemoryBody, logger)
	evtRouter := router.New(callbackRepo, disp, 0, logger)

	var dlqProducer *kafkaclient.DLQProducer
	if cfg.Kafka.DeadLetterEnabled {
		dlqProducer, err = kafkaclient.NewDLQProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("failed to initialize dead-letter producer", logging.Err(err))
		}
		defer dlqProducer.Close()
	}

	factory := kafkaConsumerFactory(cfg, logger, dlqProducer)
	manager := consumermanager.New(subscriptionRepo, evtRouter, factory, cfg.Consumer.ShutdownDeadline, logger)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "webhookd",
		Subsystem:            "worker",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize metrics collector", logging.Err(err))
	}
	metrics := prometheus.NewAppMetrics(collector)

	healthHandler := handlers.NewHealthHandler(config.Version,
		dbHealthChecker{pool: pool},
		redisHealthChecker{client: redisClient},
	)

	// The admin surface runs in this process so subscription mutations reach
	// the Manager directly; the handler notifies it after each persisted
	// lifecycle change.
	routerCfg := httpserver.RouterConfig{
		HealthHandler:       healthHandler,
		CallbackHandler:     handlers.NewCallbackHandler(callbackRepo),
		AuthDomainHandler:   handlers.NewAuthDomainHandler(domainRepo),
		SubscriptionHandler: handlers.NewSubscriptionHandler(subscriptionRepo, manager),
		ExecutionHandler:    handlers.NewExecutionHandler(executionRepo),
		CORSMiddleware:      middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()),
		MetricsHandler:      collector.Handler(),
		AppMetrics:          metrics,
		Logger:              logger,
		MaxBodyBytes:        cfg.Server.MaxBodySize,
	}

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpserver.NewRouter(routerCfg), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer manager", logging.Err(err))
	}
	logger.Info("consumer manager started")

	if err := srv.Start(ctx); err != nil {
		logger.Error("admin server exited with error", logging.Err(err))
	}

	manager.Shutdown()

	logger.Info("worker stopped")
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

// kafkaConsumerFactory builds a consumermanager.ConsumerFactory backed by
// the Kafka driver, merging the process-wide broker list into a
// subscription's own connection_config when it leaves "brokers" unset.
func kafkaConsumerFactory(cfg *config.Config, logger logging.Logger, dlq *kafkaclient.DLQProducer) consumermanager.ConsumerFactory {
	return func(sub *subscription.Subscription) (consumermanager.BrokerConsumer, error) {
		if sub.BrokerKind != subscription.BrokerKindKafka {
			return nil, fmt.Errorf("worker: unsupported broker kind %q", sub.BrokerKind)
		}

		kCfg := kafkaclient.ConnectionConfigToKafkaConfig(sub.TopicOrQueue, sub.ConsumerGroupID, sub.ConnectionConfig)
		if len(kCfg.Brokers) == 0 {
			kCfg.Brokers = cfg.Kafka.Brokers
		}
		kCfg.SessionTimeout = cfg.Kafka.SessionTimeout
		kCfg.HeartbeatInterval = cfg.Kafka.HeartbeatInterval

		consumer, err := kafkaclient.NewConsumer(kCfg, logger)
		if err != nil {
			return nil, err
		}
		if dlq != nil {
			consumer.SetDeadLetter(dlq)
		}
		return kafkaConsumerAdapter{consumer: consumer}, nil
	}
}

// kafkaConsumerAdapter bridges kafkaclient.Consumer's named Handler
// parameter type to the unnamed func type consumermanager.BrokerConsumer
// requires.
type kafkaConsumerAdapter struct {
	consumer *kafkaclient.Consumer
}

func (a kafkaConsumerAdapter) Run(ctx context.Context, handle func(ctx context.Context, payload []byte, headers map[string]string) error) error {
	return a.consumer.Run(ctx, kafkaclient.Handler(handle))
}

func (a kafkaConsumerAdapter) Close() error {
	return a.consumer.Close()
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
