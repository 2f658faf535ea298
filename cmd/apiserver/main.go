// Command apiserver serves the recommendation API over HTTP and gRPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/bootstrap"
	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/Revenue-Intelligence/internal/interfaces/http"
)

const shutdownTimeout = 30 * time.Second

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting Revenue-Intelligence API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
		logging.Bool("grpc", cfg.GRPC.Enabled),
		logging.Int("grpc_port", cfg.GRPC.Port))

	infra, err := bootstrap.Open(ctx, cfg, logger, "apiserver")
	if err != nil {
		return err
	}
	defer infra.Close()

	svc, err := infra.NewService()
	if err != nil {
		return err
	}

	httpSrv := httpserver.NewServer(cfg.Server, newHTTPHandler(infra, svc), logger)
	grpcSrv, err := newGRPCServer(infra, svc)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	if grpcSrv != nil {
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcSrv != nil {
		grpcSrv.SetServing(false)
		if stopErr := grpcSrv.Stop(shutdownCtx); stopErr != nil {
			logger.Error("gRPC server shutdown error", logging.Err(stopErr))
		}
	}
	if stopErr := httpSrv.Stop(shutdownCtx); stopErr != nil {
		logger.Error("HTTP server shutdown error", logging.Err(stopErr))
	}
	if stopErr := svc.Shutdown(shutdownCtx); stopErr != nil {
		logger.Error("engine shutdown error", logging.Err(stopErr))
	}

	logger.Info("servers stopped")
	return err
}
