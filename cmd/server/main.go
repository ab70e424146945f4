package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/erp/ledger/internal/application/finance"
	importapp "github.com/erp/ledger/internal/application/import"
	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	reportapp "github.com/erp/ledger/internal/application/report"
	tradeapp "github.com/erp/ledger/internal/application/trade"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/export"
	"github.com/erp/ledger/internal/infrastructure/lock"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/storage"
	strategyimpl "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// OTLP log export tees every entry into the collector
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	if logProvider.IsEnabled() {
		log = telemetry.Bridge(log, telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, logProvider, logger.ParseLevel(cfg.Log.Level)))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfilingTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database with zap-backed GORM logging and query tracing
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.EnableTracing(telemetry.DBTracingConfig{
		Enabled:               cfg.Telemetry.DBTraceEnabled,
		IncludeQueryVariables: cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold:    cfg.Telemetry.DBSlowQueryThresh,
		DBName:                cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Redis backs product locks and idempotency keys when either asks for it
	var redisClient *redis.Client
	if cfg.Lock.Backend == "redis" || cfg.Idempotency.Backend == "redis" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr()))
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	locker := newLocker(cfg.Lock, redisClient, log)
	idempotencyStore := newIdempotencyStore(cfg, redisClient, log)
	publisher, closePublisher := newPublisher(cfg.Events, log)

	policies, err := strategyimpl.NewRegistryWithDefaults(strategy.CostMethod(cfg.Costing.DefaultMethod))
	if err != nil {
		log.Fatal("Invalid costing configuration", zap.Error(err), zap.String("method", cfg.Costing.DefaultMethod))
	}

	var ledgerMetrics *telemetry.LedgerMetrics
	if meterProvider.IsEnabled() {
		ledgerMetrics, err = telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
			Meter:  meterProvider.Meter("ledger"),
			Logger: log,
		})
		if err != nil {
			log.Fatal("Failed to create ledger metrics", zap.Error(err))
		}
	}

	// Repositories
	scope := persistence.NewGormTransactionScope(db.DB)
	lotRepo := persistence.NewGormLotRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	orderRepo := persistence.NewGormPurchaseOrderRepository(db.DB)
	transactionRepo := persistence.NewGormFinanceTransactionRepository(db.DB)

	// Services
	ledgerService := financeapp.NewLedgerService(transactionRepo, log, financeapp.WithCurrency(cfg.Costing.Currency))
	costingService := inventoryapp.NewCostingService(lotRepo, policies, log)
	lotService := inventoryapp.NewLotService(scope, lotRepo, locker, cfg.Costing.Currency, log)
	availabilityService := inventoryapp.NewAvailabilityService(orderRepo, lotRepo, saleRepo)

	orderService := tradeapp.NewPurchaseOrderService(orderRepo, log)
	orderService.SetEventPublisher(publisher)

	receivingService := tradeapp.NewReceivingService(scope, orderRepo, locker, ledgerService, log)
	receivingService.SetEventPublisher(publisher)
	receivingService.SetLedgerMetrics(ledgerMetrics)

	saleService := tradeapp.NewSaleService(scope, saleRepo, costingService, locker, ledgerService, log)
	saleService.SetEventPublisher(publisher)
	saleService.SetLedgerMetrics(ledgerMetrics)

	reportService := reportapp.NewReportService(ledgerService, saleRepo, lotRepo, availabilityService, costingService, log)
	reportService.SetLedgerMetrics(ledgerMetrics)
	repriceService := reportapp.NewRepriceService(saleRepo, lotRepo, costingService.SimulateFIFOAgainst, log)

	var archiveStore reportapp.ArchiveStore
	if cfg.Storage.Enabled {
		storageOpts := []storage.S3ArchiveStoreOption{storage.WithLogger(log)}
		if cfg.Storage.PresignTTL > 0 {
			storageOpts = append(storageOpts, storage.WithPresignExpiration(cfg.Storage.PresignTTL))
		}
		s3Store, err := storage.NewS3ArchiveStore(ctx, cfg.Storage, storageOpts...)
		if err != nil {
			log.Fatal("Failed to initialize archive storage", zap.Error(err))
		}
		if cfg.Storage.CreateBucket {
			if err := s3Store.EnsureBucket(ctx); err != nil {
				log.Fatal("Failed to prepare archive bucket", zap.Error(err))
			}
		}
		archiveStore = s3Store
	}
	archiveService := reportapp.NewArchiveService(reportService, export.NewXLSXRenderer(), archiveStore, log)

	// Background jobs
	var (
		jobScheduler *scheduler.Scheduler
		jobTrigger   *scheduler.Trigger
	)
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewJobRegistry()
		deps := scheduler.LedgerJobDeps{
			Valuer:            reportService,
			Repricer:          repriceService,
			ValuationInterval: cfg.Scheduler.ValuationInterval,
			AuditInterval:     cfg.Scheduler.AuditInterval,
		}
		if archiveStore != nil {
			deps.Archiver = archiveService
		}
		if err := scheduler.RegisterLedgerJobs(jobs, deps); err != nil {
			log.Fatal("Failed to register jobs", zap.Error(err))
		}
		for _, name := range scheduler.UnknownJobs(jobs, cfg.Scheduler.Jobs) {
			log.Warn("Ignoring unknown job", zap.String("job", name))
		}

		jobScheduler = scheduler.NewScheduler(scheduler.Config{
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
			QueueSize:         scheduler.DefaultConfig().QueueSize,
		}, jobs, log)
		if err := jobScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		jobTrigger = scheduler.NewTrigger(scheduler.EnabledJobs(jobs, cfg.Scheduler.Jobs), jobScheduler, log)
		if err := jobTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start job trigger", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	var httpMeter = meterProvider.Meter("ledger.http")
	if !meterProvider.IsEnabled() {
		httpMeter = nil
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.UserIdentity(),
		middleware.IdempotencyKey(),
		middleware.Tracing(cfg.Telemetry.ServiceName, tracerProvider.IsEnabled()),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(httpMeter),
		middleware.Profiling(profiler.IsEnabled()),
		logger.GinMiddleware(log),
		middleware.CORS(corsCfg),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	checks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, checks)
	engine.GET("/health", systemHandler.Health)

	importOpts := importapp.Options{MaxRows: cfg.Import.MaxRows, MaxErrors: cfg.Import.MaxErrors}
	importHandler := handler.NewImportHandler(
		importapp.NewSaleImportService(saleService, importOpts, log),
		importapp.NewOpeningBalanceImportService(lotService, importOpts, log),
	)
	handlers := router.Handlers{
		PurchaseOrders: handler.NewPurchaseOrderHandler(orderService, receivingService),
		Sales:          handler.NewSaleHandler(saleService),
		Lots:           handler.NewLotHandler(lotService, availabilityService, costingService),
		Reports:        handler.NewReportHandler(reportService, repriceService, archiveService),
		Finance:        handler.NewFinanceHandler(ledgerService),
		Imports:        importHandler,
		System:         systemHandler,
	}
	router.NewRouter(engine).
		Register(router.LedgerGroups(handlers, middleware.Idempotent(idempotencyStore, cfg.Idempotency.TTL))...).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop intake first, then jobs, then the backends they use
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if jobTrigger != nil {
		if err := jobTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping job trigger", zap.Error(err))
		}
	}
	if jobScheduler != nil {
		if err := jobScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	if err := idempotencyStore.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if err := closePublisher(); err != nil {
		log.Error("Error closing event publisher", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log exporter", zap.Error(err))
	}
}

func newLocker(cfg config.LockConfig, client *redis.Client, log *zap.Logger) inventoryapp.ProductLocker {
	if cfg.Backend != "redis" {
		log.Info("Using in-process product locks")
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(client, lock.RedisConfig{
		TTL:           cfg.TTL,
		RetryInterval: cfg.RetryInterval,
		MaxRetries:    cfg.RetryCount,
	}, log)
}

func newIdempotencyStore(cfg *config.Config, client *redis.Client, log *zap.Logger) shared.IdempotencyStore {
	// a nil *redis.Client must not reach the factory as a non-nil interface
	var universal redis.UniversalClient
	if client != nil {
		universal = client
	}
	store, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, universal,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	return store
}

func newPublisher(cfg config.EventsConfig, log *zap.Logger) (shared.EventPublisher, func() error) {
	if !cfg.KafkaEnabled {
		return event.NewLogPublisher(log), func() error { return nil }
	}
	publisher := event.NewKafkaPublisher(event.NewKafkaWriter(cfg), event.NewLedgerEventSerializer(), cfg.WriteTimeout, log)
	log.Info("Publishing ledger events to kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return publisher, publisher.Close
}
