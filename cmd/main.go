package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"creditgate/internal/adapters/ai"
	"creditgate/internal/adapters/clickhouse"
	"creditgate/internal/api"
	"creditgate/internal/adapters/config"
	"creditgate/internal/adapters/errors/noop"
	"creditgate/internal/adapters/errors/sentry"
	"creditgate/internal/adapters/kafka"
	"creditgate/internal/adapters/postgres"
	redisadapter "creditgate/internal/adapters/redis"
	"creditgate/internal/domain/allowance"
	"creditgate/internal/domain/gate"
	"creditgate/internal/domain/ledger"
	"creditgate/internal/domain/pricing"
	"creditgate/internal/domain/usage"
	"creditgate/internal/events"
	"creditgate/internal/metrics"
	"creditgate/internal/pipeline"
	clickhouserepo "creditgate/internal/repository/clickhouse"
	postgresrepo "creditgate/internal/repository/postgres"
	"creditgate/pkg/auth"
	"creditgate/pkg/errors"
	"creditgate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres is the accounting source of truth and is mandatory
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer func() { _ = pgClient.Close() }()

	db := pgClient.DB()

	// Domain services
	catalog := pricing.NewCatalog(postgresrepo.NewModelPricingRepository(db))
	resolver := allowance.NewResolver(
		postgresrepo.NewCreditGroupRepository(db),
		postgresrepo.NewBaseSettingRepository(db),
		postgresrepo.NewSponsoredAllowanceRepository(db),
	)
	usageRepo := postgresrepo.NewTokenUsageRepository(db)
	aggregator := usage.NewAggregator(usageRepo)

	creditLedger := ledger.NewLedger(catalog, resolver, aggregator, usageRepo)
	requestGate := gate.New(creditLedger)

	// Optional redis for distributed provider rate limiting
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		rc, err := redisadapter.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer func() { _ = rc.Close() }()
		redisClient = rc.Client()
	}

	registry, err := ai.BuildRegistry(ctx, cfg.Providers, redisClient)
	if err != nil {
		log.Fatalf("Failed to build provider registry: %v", err)
	}
	if len(registry.List()) == 0 {
		log.Warn("No provider API keys configured, upstream calls will fail")
	}

	// Optional clickhouse analytics mirror
	var analytics pipeline.AnalyticsSink
	if cfg.ClickHouse.Enabled() {
		chClient, err := clickhouse.NewClient(cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		defer func() { _ = chClient.Close() }()

		usageAnalytics := clickhouserepo.NewUsageAnalyticsRepository(chClient.Conn())
		usageAnalytics.Start(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			_ = usageAnalytics.Stop(stopCtx)
		}()

		analytics = usageAnalytics
	}

	// Optional kafka usage event stream
	var publisher events.UsagePublisher = events.NopUsagePublisher{}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		defer func() { _ = producer.Close() }()

		publisher = events.NewKafkaUsagePublisher(producer)
	}

	// Hard quotas serialize check-then-log per user; default is soft limits
	var locker ledger.UserLocker = ledger.NopLocker{}
	if cfg.Meter.HardQuota {
		locker = postgresrepo.NewAdvisoryUserLocker(db)
		log.Info("Hard quota mode enabled, per-user request serialization active")
	}

	pipe := pipeline.NewTrackedPipe(requestGate, creditLedger, catalog, registry, locker, analytics, publisher)

	admin := allowance.NewAdmin(
		postgresrepo.NewSponsoredAllowanceRepository(db),
		postgresrepo.NewCreditGroupRepository(db),
	)

	var tokens *auth.JWTService
	if cfg.Auth.Enabled() {
		tokens = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 24*time.Hour)
		log.Info("Bearer token authentication enabled")
	} else {
		log.Warn("No AUTH_JWT_SECRET set, trusting X-User-ID header")
	}

	handler := api.NewHandler(pipe, creditLedger, tokens, pgClient.Health)
	adminHandler := api.NewAdminHandler(admin)
	server := api.NewServer(api.ServerConfig{Port: cfg.App.Port, ServiceName: cfg.App.Name}, handler, adminHandler, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, errorTracker, log)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
