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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	companyapp "github.com/erp/bff/internal/application/company"
	identityapp "github.com/erp/bff/internal/application/identity"
	inventoryapp "github.com/erp/bff/internal/application/inventory"
	"github.com/erp/bff/internal/application/invoicing"
	"github.com/erp/bff/internal/application/resource"
	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/infrastructure/auth"
	"github.com/erp/bff/internal/infrastructure/cache"
	"github.com/erp/bff/internal/infrastructure/config"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/lock"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/persistence"
	"github.com/erp/bff/internal/infrastructure/storage"
	"github.com/erp/bff/internal/infrastructure/telemetry"
	"github.com/erp/bff/internal/interfaces/http/handler"
	"github.com/erp/bff/internal/interfaces/http/middleware"
	"github.com/erp/bff/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		logger.Sync(log)
	}()

	log.Info("Starting ERPNext BFF",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("erpnext", cfg.ERPNext.BaseURL),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	registry := telemetry.NewRegistry()
	httpMetrics, err := telemetry.NewHTTPMetrics(registry)
	if err != nil {
		return fmt.Errorf("http metrics: %w", err)
	}
	businessMetrics, err := telemetry.NewBusinessMetrics(registry)
	if err != nil {
		return fmt.Errorf("business metrics: %w", err)
	}
	upstreamMetrics, err := erpnext.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("erpnext metrics: %w", err)
	}

	// Sessions, cached profiles and locks share Redis when it is enabled
	store, err := cache.NewStore(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	var locker lock.Locker = lock.NewMemoryLocker()
	if rs, ok := store.(*cache.RedisStore); ok {
		locker = lock.NewRedisLocker(rs.Client())
	}

	sessions := persistence.NewCacheSessionRepository(store, cfg.Session.KeyPrefix)
	tokens := auth.NewTokenService(cfg.JWT)

	retry := erpnext.DefaultRetryConfig()
	retry.MaxRetries = cfg.ERPNext.MaxRetries
	if cfg.ERPNext.RetryDelay > 0 {
		retry.RetryDelay = cfg.ERPNext.RetryDelay
	}
	if cfg.ERPNext.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.ERPNext.MaxRetryDelay
	}
	upstream, err := erpnext.NewClient(erpnext.Config{
		BaseURL:            cfg.ERPNext.BaseURL,
		Timeout:            cfg.ERPNext.Timeout,
		Retry:              retry,
		RateLimitQPS:       cfg.ERPNext.RateLimitQPS,
		RateLimitBurst:     cfg.ERPNext.RateLimitBurst,
		InsecureSkipVerify: cfg.ERPNext.InsecureSkipVerify,
		MaxResponseSize:    cfg.ERPNext.MaxResponseSize,
	},
		erpnext.WithMetrics(upstreamMetrics),
		erpnext.WithTracerProvider(tp.Provider()),
	)
	if err != nil {
		return fmt.Errorf("erpnext client: %w", err)
	}

	withholding, err := withholdingRule(cfg.Fiscal.Withholding)
	if err != nil {
		return err
	}

	invoicingOpts := []invoicing.Option{
		invoicing.WithMetrics(businessMetrics),
		invoicing.WithCache(store),
	}
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("object storage bucket: %w", err)
		}
		invoicingOpts = append(invoicingOpts, invoicing.WithStorage(s3))
		log.Info("PDF archive enabled", zap.String("bucket", s3.Bucket()))
	}

	authService := identityapp.NewAuthService(upstream, sessions, tokens, businessMetrics, identityapp.AuthServiceConfig{
		SessionTTL: cfg.Session.TTL,
	})
	companyService := companyapp.NewService(upstream, store, cfg.Fiscal.ProfileCacheTTL)
	resourceService := resource.NewService(upstream, resource.DefaultRegistry())
	invoicingService := invoicing.NewService(upstream, companyService, locker, invoicing.Config{
		ElectronicPrefix: cfg.Fiscal.ElectronicPrefix,
		ManualPrefix:     cfg.Fiscal.ManualPrefix,
		FCEPrefix:        cfg.Fiscal.FCEPrefix,
		LockTTL:          cfg.Fiscal.LockTTL,
		Withholding:      withholding,
	}, invoicingOpts...)
	inventoryService := inventoryapp.NewService(upstream, locker, businessMetrics, inventoryapp.Config{
		LockTTL: cfg.Fiscal.LockTTL,
	})

	if err := middleware.SetupValidator(); err != nil {
		return fmt.Errorf("validator: %w", err)
	}

	handlers := router.Handlers{
		Auth:            handler.NewAuthHandler(authService),
		Company:         handler.NewCompanyHandler(companyService),
		Resource:        handler.NewResourceHandler(resourceService),
		Fiscal:          handler.NewFiscalHandler(cfg.Fiscal.FCEPrefix),
		SalesInvoice:    handler.NewSalesInvoiceHandler(invoicingService),
		PurchaseInvoice: handler.NewPurchaseInvoiceHandler(invoicingService),
		Inventory:       handler.NewInventoryHandler(inventoryService),
		System:          handler.NewSystemHandler(cfg.App.Name, version, healthChecks(upstream, store)),
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Close()
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSEnabled = cfg.App.Env == "production"

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = registry
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Config{
		Logger:   log,
		Gatherer: gatherer,
		Metrics:  httpMetrics,
		Tracing: middleware.TracingConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			Enabled:        tp.IsEnabled(),
			TracerProvider: tp.Provider(),
		},
		Security:     securityConfig,
		CORS:         corsConfig,
		MaxBodyBytes: cfg.HTTP.MaxBodySize,
		RateLimiter:  limiter,
		Tokens:       tokens,
		Sessions:     authService,
		Swagger: middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		},
	}, handlers)
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Info("Shutting down server...", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// withholdingRule parses the income tax withholding settings
func withholdingRule(cfg config.WithholdingConfig) (fiscal.WithholdingRule, error) {
	rate, err := decimal.NewFromString(cfg.Rate)
	if err != nil {
		return fiscal.WithholdingRule{}, fmt.Errorf("fiscal.withholding.rate: %w", err)
	}
	threshold, err := decimal.NewFromString(cfg.Threshold)
	if err != nil {
		return fiscal.WithholdingRule{}, fmt.Errorf("fiscal.withholding.threshold: %w", err)
	}
	minimum, err := decimal.NewFromString(cfg.Minimum)
	if err != nil {
		return fiscal.WithholdingRule{}, fmt.Errorf("fiscal.withholding.minimum: %w", err)
	}
	return fiscal.WithholdingRule{
		Kind:      fiscal.TaxGanancias,
		Rate:      rate,
		Threshold: threshold,
		Minimum:   minimum,
	}, nil
}

// healthChecks probes ERPNext and, when it can answer pings, the session store
func healthChecks(upstream *erpnext.Client, store cache.Store) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"erpnext": upstream.Ping,
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["session_store"] = p.Ping
	}
	return checks
}
