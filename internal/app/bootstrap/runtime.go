package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/marketplace-ledger/internal/adapters/cache"
	eventadapter "github.com/viralforge/marketplace-ledger/internal/adapters/events"
	grpcadapter "github.com/viralforge/marketplace-ledger/internal/adapters/grpc"
	httpadapter "github.com/viralforge/marketplace-ledger/internal/adapters/http"
	"github.com/viralforge/marketplace-ledger/internal/adapters/memory"
	"github.com/viralforge/marketplace-ledger/internal/adapters/postgres"
	"github.com/viralforge/marketplace-ledger/internal/adapters/security"
	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	consumer   *eventadapter.ConsumerWorker
	sweeper    *eventadapter.SweepWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}
	var readyChecks []func(context.Context) error

	var store ports.Store
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.WarnContext(ctx, "using in-memory ledger store; state is lost on restart",
			"module", "bootstrap",
			"layer", "runtime",
			"operation", "new_runtime",
			"outcome", "memory_store",
		)
		store = memory.NewStore()
	default:
		db, connErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if connErr != nil {
			return nil, connErr
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, dbErr
		}
		closers = append(closers, sqlDB)
		if migrateErr := postgres.RunMigrations(ctx, db); migrateErr != nil {
			cleanup()
			return nil, migrateErr
		}
		pgStore := postgres.NewStore(db)
		readyChecks = append(readyChecks, pgStore.Ping)
		store = pgStore
	}

	policyCache := ports.PolicyCache(memory.NewPolicyCache())
	locker := ports.Locker(memory.NewLocker())
	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			cleanup()
			return nil, redisErr
		}
		closers = append(closers, redisClient)
		policyCache = cache.NewRedisPolicyCache(redisClient)
		locker = cache.NewRedisLocker(redisClient)
		readyChecks = append(readyChecks, func(ctx context.Context) error {
			return pingRedis(ctx, redisClient)
		})
	}

	bank := ports.BankDetailsProvider(memory.NewBankDirectory())
	if cfg.ProfileGRPCURL != "" {
		profileClient, profileErr := grpcadapter.NewProfileClient(cfg.ProfileGRPCURL)
		if profileErr != nil {
			cleanup()
			return nil, profileErr
		}
		closers = append(closers, profileClient)
		bank = profileClient
	} else {
		logger.WarnContext(ctx, "profile service not configured; payouts will find no bank details",
			"module", "bootstrap",
			"layer", "runtime",
			"operation", "new_runtime",
			"outcome", "degraded",
		)
	}

	tokens, err := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		cleanup()
		return nil, err
	}
	webhooks := security.NewWebhookSigner(cfg.WebhookSecrets)

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:     cfg.ServiceID,
			DefaultCurrency: cfg.DefaultCurrency,
			IdempotencyTTL:  cfg.IdempotencyTTL,
			PolicyCacheTTL:  cfg.PolicyCacheTTL,
			AutoAcceptAfter: cfg.AutoAcceptAfter,
			SweepBatchSize:  cfg.SweepBatchSize,
		},
		Store:  store,
		Cache:  policyCache,
		Bank:   bank,
		Logger: logger,
	})

	handler := httpadapter.NewHandler(service, tokens, webhooks, func(ctx context.Context) error {
		var errs []error
		for _, check := range readyChecks {
			errs = append(errs, check(ctx))
		}
		return errors.Join(errs...)
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(grpcadapter.LedgerServiceName, healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewLedgerInternalServer(service))

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumerAdapter := eventadapter.Consumer(eventadapter.NewNoopConsumer())
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopics)
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		kafkaConsumer, conErr := eventadapter.NewKafkaRelayConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup)
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, using noop consumer", "error", conErr)
		} else {
			consumerAdapter = kafkaConsumer
			closers = append(closers, kafkaConsumer)
		}
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     eventadapter.NewOutboxWorker(logger, store.Outbox(), publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxMaxRetries),
		consumer:   eventadapter.NewConsumerWorker(logger, consumerAdapter, service, cfg.ConsumerPollInterval),
		sweeper:    eventadapter.NewSweepWorker(logger, service, locker, cfg.SweepInterval),
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func Build(ctx context.Context, configPath string) (*Runtime, error) {
	return NewRuntime(ctx, configPath)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen grpc: %w", err)
	}
	r.grpcLis = lis
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "api runtime started",
		"module", "bootstrap",
		"layer", "runtime",
		"operation", "run_api",
		"outcome", "started",
		"http_port", r.cfg.HTTPPort,
		"grpc_port", r.cfg.GRPCPort,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	run := func(worker interface{ Run(context.Context) error }) {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}
	go run(r.outbox)
	go run(r.consumer)
	go run(r.sweeper)
	r.logger.InfoContext(ctx, "worker runtime started",
		"module", "bootstrap",
		"layer", "runtime",
		"operation", "run_worker",
		"outcome", "started",
	)

	select {
	case <-ctx.Done():
		r.cleanupFn(context.Background())
		return nil
	case err := <-errCh:
		r.cleanupFn(context.Background())
		return err
	}
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
