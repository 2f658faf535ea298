// Command worker consumes customer batches from Kafka and runs them through
// the recommendation pipeline.  Results are published to the result topic,
// and optionally indexed and exported, by the service sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/bootstrap"
	"github.com/turtacn/Revenue-Intelligence/internal/config"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/Revenue-Intelligence/internal/interfaces/http"
	"github.com/turtacn/Revenue-Intelligence/internal/interfaces/http/handlers"
)

const (
	defaultHealthPort = 8081
	shutdownTimeout   = 30 * time.Second
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	workers := flag.Int("workers", 0, "number of group consumers (overrides worker.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the health and metrics endpoint")
	createTopics := flag.Bool("create-topics", false, "create the request, result and dead letter topics on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Worker.Concurrency = *workers
	}
	cfg.Server.Port = *healthPort

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	if err := run(cfg, logger, *createTopics); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger, createTopics bool) error {
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka.enabled must be true for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting Revenue-Intelligence worker",
		logging.String("version", version),
		logging.Int("consumers", cfg.Worker.Concurrency),
		logging.String("topic", cfg.Kafka.RequestTopic),
		logging.String("group", cfg.Kafka.GroupID))

	if createTopics {
		if err := ensureTopics(ctx, cfg.Kafka, logger); err != nil {
			return err
		}
	}

	infra, err := bootstrap.Open(ctx, cfg, logger, "worker")
	if err != nil {
		return err
	}
	defer infra.Close()

	var svcOpts []recommendation.ServiceOption
	if !cfg.Worker.IndexResults {
		svcOpts = append(svcOpts, recommendation.WithIndexer(nil))
	}
	svc, err := infra.NewService(svcOpts...)
	if err != nil {
		return err
	}
	handler := newBatchHandler(svc, infra.Metrics, logger, cfg.Worker.ExportBatch)

	consumers := make([]*kafka.Consumer, 0, cfg.Worker.Concurrency)
	defer func() {
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				logger.Warn("consumer close failed", logging.Err(err))
			}
		}
	}()
	for n := 0; n < cfg.Worker.Concurrency; n++ {
		c, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			GroupID:     cfg.Kafka.GroupID,
			Topics:      []string{cfg.Kafka.RequestTopic},
			StartOffset: cfg.Kafka.StartOffset,
			RetryConfig: kafka.RetryConfig{
				MaxRetries:      cfg.Worker.MaxRetries,
				RetryBackoff:    cfg.Worker.RetryBackoff,
				DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
			},
		}, infra.Producer, logger.With(logging.Int("consumer", n)))
		if err != nil {
			return err
		}
		c.Subscribe(cfg.Kafka.RequestTopic, handler.Handle)
		if err := c.Start(ctx); err != nil {
			return err
		}
		consumers = append(consumers, c)
	}

	healthSrv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(version, infra.HealthCheckers()...),
		Logger:           logger,
		AppMetrics:       infra.Metrics,
		MetricsCollector: infra.Collector,
		MetricsPath:      cfg.Metrics.Path,
	}), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- healthSrv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-errCh:
		if err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := healthSrv.Stop(shutdownCtx); stopErr != nil {
		logger.Error("health server shutdown error", logging.Err(stopErr))
	}
	// Consumers drain their in-flight handlers before the engine stops
	// admitting batches; the deferred Close is then a no-op.
	for _, c := range consumers {
		if closeErr := c.Close(); closeErr != nil {
			logger.Warn("consumer close failed", logging.Err(closeErr))
		}
	}
	if stopErr := svc.Shutdown(shutdownCtx); stopErr != nil {
		logger.Error("engine shutdown error", logging.Err(stopErr))
	}

	for _, c := range consumers {
		s := c.Stats()
		logger.Info("consumer stats",
			logging.Int64("consumed", s.MessagesConsumed),
			logging.Int64("processed", s.MessagesProcessed),
			logging.Int64("failed", s.MessagesFailed),
			logging.Int64("dead_lettered", s.MessagesDeadLettered))
	}
	logger.Info("worker stopped")
	return err
}

func ensureTopics(ctx context.Context, kc config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(kc.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(kc.RequestTopic, kc.ResultTopic, kc.DeadLetterTopic))
}
