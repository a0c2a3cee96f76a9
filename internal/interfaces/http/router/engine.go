package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/erp/bff/docs"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
	"github.com/erp/bff/internal/interfaces/http/dto"
	"github.com/erp/bff/internal/interfaces/http/middleware"
)

// Paths served without a session
const (
	PathHealth     = "/health"
	PathMetrics    = "/metrics"
	PathLogin      = "/api/v1/auth/login"
	PathPing       = "/api/v1/ping"
	PathSystemInfo = "/api/v1/system/info"
	PathSwagger    = "/swagger/"
)

// PublicPaths are skipped by SessionAuth
var PublicPaths = []string{PathLogin, PathHealth, PathMetrics, PathPing, PathSystemInfo}

// Config wires the middleware chain
type Config struct {
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	Metrics  *telemetry.HTTPMetrics
	Tracing  middleware.TracingConfig
	Security middleware.SecurityConfig
	CORS     middleware.CORSConfig
	// MaxBodyBytes caps request bodies; 0 disables the limit
	MaxBodyBytes int64
	// RateLimiter is optional
	RateLimiter *middleware.RateLimiter
	Tokens      middleware.TokenValidator
	Sessions    middleware.SessionResolver
	// Swagger mounts the API docs when enabled
	Swagger middleware.SwaggerConfig
}

// New builds the engine. Middleware order: RequestID, Recovery, access log,
// Metrics, Tracing, Secure, CORS, BodyLimit, RateLimit, SessionAuth.
func New(cfg Config, h Handlers) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(cfg.Logger),
		logger.GinMiddleware(cfg.Logger, PathHealth, PathMetrics),
		middleware.Metrics(cfg.Metrics, PathMetrics),
	)
	engine.Use(middleware.Tracing(cfg.Tracing)...)
	engine.Use(
		middleware.Secure(cfg.Security),
		middleware.CORS(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodyBytes),
	)
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	var skipPrefixes []string
	if cfg.Swagger.Enabled && !cfg.Swagger.RequireAuth {
		skipPrefixes = append(skipPrefixes, PathSwagger)
	}
	engine.Use(middleware.SessionAuth(middleware.SessionAuthConfig{
		Tokens:           cfg.Tokens,
		Sessions:         cfg.Sessions,
		SkipPaths:        PublicPaths,
		SkipPathPrefixes: skipPrefixes,
	}))

	engine.NoRoute(notFound)
	engine.NoMethod(methodNotAllowed)

	engine.GET(PathHealth, h.System.Health)
	if cfg.Gatherer != nil {
		engine.GET(PathMetrics, gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.Swagger.Enabled {
		engine.GET(PathSwagger+"*any", middleware.SwaggerProtection(cfg.Swagger), ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	for _, group := range DomainGroups(h) {
		r.Register(group)
	}
	api := r.Setup()
	api.GET("/ping", h.System.Ping)

	return engine
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Method not allowed", middleware.GetRequestID(c)))
}
