package main

import (
	"context"
	"time"

	"github.com/turtacn/Revenue-Intelligence/internal/application/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/prometheus"
)

const defaultHandlerTimeout = 5 * time.Minute

// batchHandler turns one recommendation.requested event into a Recommend
// call.  Results leave through the service sinks; a failed sink is logged
// and does not fail the message.
type batchHandler struct {
	svc       recommendation.Service
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	exportAll bool
	timeout   time.Duration
}

func newBatchHandler(svc recommendation.Service, metrics *prometheus.AppMetrics, logger logging.Logger, exportAll bool) *batchHandler {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	return &batchHandler{
		svc:       svc,
		metrics:   metrics,
		logger:    logging.OrNop(logger).Named("batch-handler"),
		exportAll: exportAll,
		timeout:   defaultHandlerTimeout,
	}
}

func (h *batchHandler) Handle(ctx context.Context, msg *kafka.Message) (err error) {
	start := time.Now()
	defer func() { prometheus.RecordMessage(h.metrics, msg.Topic, time.Since(start), err) }()

	payload, err := kafka.DecodeBatchRequest(msg)
	if err != nil {
		return err
	}
	log := h.logger.With(logging.BatchID(payload.BatchID), logging.Int64("offset", msg.Offset))

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.svc.Recommend(ctx, &recommendation.RecommendRequest{
		BatchID:            payload.BatchID,
		Batch:              recommendation.Batch{Customers: payload.Customers, Market: payload.Market},
		MaxRecommendations: payload.MaxRecommendations,
		SkipCache:          payload.SkipCache,
		Export:             payload.Export || h.exportAll,
	})
	if err != nil {
		log.Warn("batch rejected", logging.Err(err))
		return err
	}

	for _, sinkErr := range resp.SinkErrors {
		log.Warn("sink failed", logging.String("error", sinkErr))
	}
	log.Info("batch processed",
		logging.Int("customers", len(payload.Customers)),
		logging.Int("recommendations", len(resp.Recommendations)),
		logging.Int("skipped", resp.Skipped),
		logging.Bool("cached", resp.Cached),
		logging.String("export", resp.ExportLocation),
		logging.Duration("duration", time.Since(start)))
	return nil
}
