package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/salesdesk/internal/application/checkout"
	"github.com/erp/salesdesk/internal/infrastructure/cache"
	"github.com/erp/salesdesk/internal/infrastructure/config"
	"github.com/erp/salesdesk/internal/infrastructure/logger"
	"github.com/erp/salesdesk/internal/infrastructure/storage"
	"github.com/erp/salesdesk/internal/infrastructure/telemetry"
	"github.com/erp/salesdesk/internal/infrastructure/upstream"
	"github.com/erp/salesdesk/internal/interfaces/http/handler"
	"github.com/erp/salesdesk/internal/interfaces/http/middleware"
	"github.com/erp/salesdesk/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting salesdesk",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.App.Version),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tp, err := telemetry.NewTracerProvider(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Metrics
	var metrics *telemetry.Metrics
	if cfg.Telemetry.MetricsEnabled {
		metrics = telemetry.NewMetrics(telemetry.DefaultMetricsConfig())
	}

	// Upstream ERP client
	upstreamCfg := upstream.DefaultConfig()
	upstreamCfg.BaseURL = cfg.Upstream.BaseURL
	upstreamCfg.Timeout = cfg.Upstream.Timeout
	upstreamCfg.Token = cfg.Upstream.Token
	upstreamCfg.BreakerFailures = cfg.Upstream.BreakerFailures
	upstreamCfg.BreakerCooldown = cfg.Upstream.BreakerCooldown
	upstreamCfg.UserAgent = cfg.App.Name + "/" + cfg.App.Version

	upstreamOpts := []upstream.Option{upstream.WithLogger(log.Named("upstream"))}
	if metrics != nil {
		upstreamOpts = append(upstreamOpts, upstream.WithMetrics(metrics))
	}
	erp, err := upstream.NewClient(upstreamCfg, upstreamOpts...)
	if err != nil {
		log.Fatal("Failed to create upstream client", zap.Error(err))
	}

	// Checkout sessions
	var orchestratorOpts []checkout.Option
	if metrics != nil {
		orchestratorOpts = append(orchestratorOpts, checkout.WithMetrics(metrics))
	}
	if archive := newReceiptArchive(rootCtx, cfg, log); archive != nil {
		orchestratorOpts = append(orchestratorOpts, checkout.WithReceiptArchive(archive))
	}

	serviceOpts := []checkout.ServiceOption{
		checkout.WithServiceLogger(log.Named("checkout")),
		checkout.WithOrchestratorOptions(orchestratorOpts...),
	}
	if metrics != nil {
		serviceOpts = append(serviceOpts, checkout.WithSessionGauge(metrics))
	}
	sessions := checkout.NewService(
		upstream.NewCatalogClient(erp),
		upstream.NewOrderClient(erp),
		checkout.ServiceConfig{IdleTTL: cfg.Session.IdleTTL},
		serviceOpts...,
	)
	go sessions.RunSweeper(rootCtx, cfg.Session.SweepInterval)

	// Idempotency keys
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	).CreateStore(rootCtx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	if idempotencyStore != nil {
		defer func() {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engineCfg := router.EngineConfig{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     tp.IsEnabled(),
		Logger:      log,
	}
	if metrics != nil {
		engineCfg.Metrics = metrics
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Close()
		engineCfg.RateLimiter = limiter
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	engine := router.NewEngine(engineCfg)

	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, sessions)
	engine.GET("/health", systemHandler.Health)

	sessionHandler := handler.NewCheckoutSessionHandler(sessions,
		handler.WithIdempotency(idempotencyStore, cfg.Idempotency.TTL),
	)

	systemRoutes := router.NewDomainGroup("/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(sessionHandler).
		Register(systemRoutes).
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

	// Graceful shutdown
	<-rootCtx.Done()
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully", zap.Int("open_sessions", sessions.Len()))
}

// newReceiptArchive returns nil when archiving is disabled or unusable.
// A sale never fails because its receipt could not be archived.
func newReceiptArchive(ctx context.Context, cfg *config.Config, log *zap.Logger) checkout.ReceiptArchive {
	if !cfg.Storage.Enabled {
		return nil
	}

	archive, err := storage.NewS3ReceiptArchive(ctx, &cfg.Storage, storage.WithLogger(log.Named("archive")))
	if err != nil {
		log.Warn("Receipt archive disabled", zap.Error(err))
		return nil
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := archive.EnsureBucket(ensureCtx); err != nil {
		log.Warn("Receipt archive bucket unavailable, archiving disabled",
			zap.String("bucket", archive.Bucket()),
			zap.Error(err),
		)
		return nil
	}

	log.Info("Receipt archive enabled", zap.String("bucket", archive.Bucket()))
	return archive
}
