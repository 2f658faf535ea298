package main

import (
	"net/http"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/bootstrap"
	transport "github.com/turtacn/Revenue-Intelligence/internal/interfaces/grpc"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/grpc/services"
	httpserver "github.com/turtacn/Revenue-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/middleware"
)

const rateLimitSweep = time.Minute

func newHTTPHandler(infra *bootstrap.Infrastructure, svc recommendation.Service) http.Handler {
	cfg := infra.Config
	logger := infra.Logger

	var recOpts []handlers.RecommendationHandlerOption
	if infra.Searcher != nil {
		recOpts = append(recOpts, handlers.WithSearcher(infra.Searcher))
	}
	if cfg.Server.MaxBodySize > 0 {
		recOpts = append(recOpts, handlers.WithMaxBodySize(cfg.Server.MaxBodySize))
	}

	routerCfg := httpserver.RouterConfig{
		RecommendationHandler: handlers.NewRecommendationHandler(svc, logger, recOpts...),
		CatalogHandler:        handlers.NewCatalogHandler(svc, logger),
		HealthHandler:         handlers.NewHealthHandler(version, infra.HealthCheckers()...),
		Logger:                logger,
		AppMetrics:            infra.Metrics,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSAllowedOrigins
		routerCfg.CORS = &cors
	}
	if cfg.Server.RateLimitRPS > 0 {
		routerCfg.RateLimiter = middleware.NewTokenBucketLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, rateLimitSweep)
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = infra.Collector
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	return httpserver.NewRouter(routerCfg)
}

// newGRPCServer returns nil when gRPC is disabled.
func newGRPCServer(infra *bootstrap.Infrastructure, svc recommendation.Service) (*transport.Server, error) {
	if !infra.Config.GRPC.Enabled {
		return nil, nil
	}
	srv, err := transport.NewServer(infra.Config.GRPC,
		transport.WithLogger(infra.Logger),
		transport.WithMetrics(infra.Metrics),
		transport.WithGracefulTimeout(shutdownTimeout))
	if err != nil {
		return nil, err
	}
	services.NewRecommendationService(svc, infra.Logger).Register(srv)
	return srv, nil
}
