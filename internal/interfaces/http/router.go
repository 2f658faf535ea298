package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/middleware"
)

// DefaultMetricsPath is where the Prometheus scrape endpoint is mounted when
// RouterConfig.MetricsPath is empty.
const DefaultMetricsPath = "/metrics"

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.  Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	// Handlers
	RecommendationHandler *handlers.RecommendationHandler
	CatalogHandler        *handlers.CatalogHandler
	HealthHandler         *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	Logging     *middleware.LoggingConfig

	// Infrastructure
	Logger           logging.Logger
	AppMetrics       *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
}

// NewRouter constructs the complete HTTP route tree from the given configuration.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = DefaultMetricsPath
	}
	probes := []string{"/healthz", "/readyz", "/healthz/detail", metricsPath}

	// --- Global middleware (applied to every request) ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.SkipPaths = probes
	if cfg.Logging != nil {
		logCfg = *cfg.Logging
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.AppMetrics, logCfg))

	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, middleware.RateLimitConfig{SkipPaths: probes}, cfg.Logger))
	}

	// --- Probes and scrape endpoint ---
	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
		r.Get("/healthz/detail", cfg.HealthHandler.Detailed)
	}
	if cfg.MetricsCollector != nil {
		r.Handle(metricsPath, cfg.MetricsCollector.Handler())
	}

	// --- API v1 ---
	r.Route("/api/v1", func(api chi.Router) {
		api.NotFound(handlers.NotFound)
		api.MethodNotAllowed(handlers.MethodNotAllowed)
		if cfg.RecommendationHandler != nil {
			cfg.RecommendationHandler.RegisterRoutes(api)
		}
		if cfg.CatalogHandler != nil {
			cfg.CatalogHandler.RegisterRoutes(api)
		}
	})

	return r
}
