package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	migrationapp "github.com/storeshift/backend/internal/application/migration"
	"github.com/storeshift/backend/internal/infrastructure/auth"
	"github.com/storeshift/backend/internal/infrastructure/cache"
	"github.com/storeshift/backend/internal/infrastructure/config"
	"github.com/storeshift/backend/internal/infrastructure/connector"
	"github.com/storeshift/backend/internal/infrastructure/connector/rest"
	"github.com/storeshift/backend/internal/infrastructure/event"
	"github.com/storeshift/backend/internal/infrastructure/export"
	"github.com/storeshift/backend/internal/infrastructure/logger"
	"github.com/storeshift/backend/internal/infrastructure/persistence"
	"github.com/storeshift/backend/internal/infrastructure/scheduler"
	"github.com/storeshift/backend/internal/infrastructure/storage"
	"github.com/storeshift/backend/internal/infrastructure/telemetry"
	"github.com/storeshift/backend/internal/infrastructure/vault"
	"github.com/storeshift/backend/internal/interfaces/http/handler"
	"github.com/storeshift/backend/internal/interfaces/http/middleware"
	"github.com/storeshift/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()

	// Telemetry log pipeline first so the zap logger can tee into it
	bootLog, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log provider", zap.Error(err))
	}

	var extraCores []zapcore.Core
	if logProvider.IsEnabled() {
		extraCores = append(extraCores, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: logProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		}))
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting StoreShift",
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
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider, logProvider)

	// Database with zap-backed gorm logger and tracing callbacks
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Credential vault
	v, err := vault.New(cfg.Vault.MasterKey, vault.WithIterations(cfg.Vault.Iterations))
	if err != nil {
		log.Fatal("Failed to initialize credential vault", zap.Error(err))
	}
	if v.Generated() != "" {
		log.Warn("No vault master key configured; generated an ephemeral key. Stored credentials will not survive a restart unless STORESHIFT_VAULT_MASTER_KEY is set",
			zap.String("master_key", v.Generated()))
	}

	// Repositories
	projectRepo := persistence.NewGormProjectRepository(db.DB)
	connectionRepo := persistence.NewGormConnectionConfigRepository(db.DB)
	mappingRepo := persistence.NewGormEntityMappingRepository(db.DB)
	syncedRepo := persistence.NewGormSyncedItemRepository(db.DB)
	runRepo := persistence.NewGormMigrationRunRepository(db.DB)

	// Platform connectors
	connectors := connector.NewFactory(cfg.Connector.ShopifyAPIVersion,
		rest.WithTimeout(cfg.Connector.Timeout),
		rest.WithRateLimit(cfg.Connector.RateLimit, cfg.Connector.Burst),
		rest.WithUserAgent(cfg.Connector.UserAgent),
		rest.WithLogger(log.Named("connector")),
	)

	// Application services
	hub := event.NewStatusHub(event.WithHubLogger(log.Named("status-hub")))
	projectService := migrationapp.NewProjectService(projectRepo, connectionRepo, mappingRepo, v, connectors, log)
	syncService := migrationapp.NewSyncService(projectService, projectRepo, connectors, syncedRepo, export.NewXLSXWriter(),
		migrationapp.SyncServiceConfig{PageSize: cfg.Sync.PageSize, ListPageSize: cfg.Sync.ListPageSize}, log)

	orchestratorOpts := []migrationapp.OrchestratorOption{migrationapp.WithPublisher(hub)}
	migrationMetrics, err := telemetry.NewMigrationMetrics(meterProvider.Meter("storeshift.migration"))
	if err != nil {
		log.Fatal("Failed to create migration metrics", zap.Error(err))
	}
	orchestratorOpts = append(orchestratorOpts, migrationapp.WithItemRecorder(migrationMetrics))

	if cfg.Storage.Enabled {
		archive, err := storage.NewS3RunArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize run archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Run archive bucket check failed", zap.Error(err))
		}
		orchestratorOpts = append(orchestratorOpts, migrationapp.WithRunArchive(archive))
		log.Info("Run archive enabled", zap.String("bucket", archive.Bucket()))
	}
	orchestrator := migrationapp.NewOrchestrator(projectService, connectors, runRepo, log, orchestratorOpts...)

	healthChecks := map[string]handler.HealthCheck{"database": db.Ping}

	// Optional redis status mirror
	mirrorCtx, stopMirror := context.WithCancel(ctx)
	defer stopMirror()
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
		mirror := cache.NewStatusMirror(redisClient, cfg.Redis.Prefix, log)
		go mirror.Run(mirrorCtx, hub)
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("Status mirror enabled", zap.String("key", mirror.LastKey()))
	}

	// Optional periodic cache refresh
	if cfg.Scheduler.Enabled {
		refresher, err := scheduler.NewSyncRefresher(scheduler.SyncRefresherConfig{
			Schedule:   cfg.Scheduler.SyncSchedule,
			JobTimeout: cfg.Scheduler.JobTimeout,
		}, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync refresher", zap.Error(err))
		}
		if err := refresher.Start(ctx); err != nil {
			log.Fatal("Failed to start sync refresher", zap.Error(err))
		}
		defer func() {
			if err := refresher.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync refresher", zap.Error(err))
			}
		}()
		log.Info("Sync refresher started", zap.String("schedule", cfg.Scheduler.SyncSchedule))
	}

	// HTTP handlers
	handlers := router.Handlers{
		System:    handler.NewSystemHandler(cfg.App.Name, version, healthChecks),
		Projects:  handler.NewProjectHandler(projectService),
		Sync:      handler.NewSyncHandler(syncService, log),
		Migration: handler.NewMigrationHandler(orchestrator, projectService, hub, log),
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order: request id, access log, recovery, tracing, metrics,
	// CORS, security headers, body limit, rate limit.
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if tracerProvider.IsEnabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName)...)
	}
	httpMetrics, err := middleware.HTTPMetrics(meterProvider.Meter("storeshift.http"))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	engine.Use(httpMetrics)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimit >= 0 {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)))
		log.Info("Rate limiting enabled",
			zap.Float64("per_second", cfg.HTTP.RateLimit),
			zap.Int("burst", cfg.HTTP.RateBurst),
		)
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	if cfg.JWT.Enabled {
		r.Use(middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
			Validator: auth.NewJWTService(cfg.JWT),
			SkipPaths: []string{r.BasePath() + "/health"},
			Logger:    log,
		}))
		log.Info("API bearer authentication enabled")
	}
	r.Register(router.Routes(handlers)...).Setup()

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

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error("Active migration did not stop in time", zap.Error(err))
	}
	stopMirror()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTelemetry flushes and stops the telemetry providers
func shutdownTelemetry(log *zap.Logger, providers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}

// issueToken prints an operator bearer token: token <subject> [ttl]
func issueToken(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: server token <subject> [ttl, e.g. 720h]")
	}
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is not configured")
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
		ttl = d
	}
	token, err := auth.NewJWTService(cfg.JWT).Issue(args[0], ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
