package kafka

import (
	"context"

	domainrec "github.com/turtacn/Revenue-Intelligence/internal/domain/recommendation"
	"github.com/turtacn/Revenue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

// RecommendationPublisher emits one recommendation.generated event per
// recommendation, keyed by customer id.
type RecommendationPublisher struct {
	publisher Publisher
	topic     string
	source    string
	logger    logging.Logger
}

func NewRecommendationPublisher(p Publisher, topic, source string, logger logging.Logger) *RecommendationPublisher {
	if topic == "" {
		topic = TopicRecommendations
	}
	return &RecommendationPublisher{
		publisher: p,
		topic:     topic,
		source:    source,
		logger:    logging.OrNop(logger).Named("recommendation-publisher"),
	}
}

// PublishRecommendations sends recs as a single batch write.  Any failed
// message fails the call; messages already written are not retracted.
func (p *RecommendationPublisher) PublishRecommendations(ctx context.Context, batchID string, recs []domainrec.ActionableRecommendation) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]*ProducerMessage, 0, len(recs))
	for i, rec := range recs {
		env, err := NewEventEnvelope(EventRecommendationGenerated, p.source, RecommendationGeneratedPayload{
			BatchID:        batchID,
			Sequence:       i + 1,
			Total:          len(recs),
			Recommendation: rec,
		})
		if err != nil {
			return err
		}
		env.Metadata = map[string]string{"batch_id": batchID}
		msg, err := env.ToMessage(p.topic, rec.CustomerID)
		if err != nil {
			return err
		}
		msg.Headers["batch_id"] = batchID
		msgs = append(msgs, msg)
	}

	res, err := p.publisher.PublishBatch(ctx, msgs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		var first error = errors.New(errors.ErrCodeMessageQueue, "write failed")
		if len(res.Errors) > 0 {
			first = res.Errors[0].Error
		}
		p.logger.Warn("Partial recommendation publish",
			logging.BatchID(batchID),
			logging.Int("succeeded", res.Succeeded),
			logging.Int("failed", res.Failed))
		return errors.Wrap(first, errors.ErrCodeMessageQueue, "publish recommendations").
			WithDetailf("%d of %d messages failed", res.Failed, len(msgs))
	}
	p.logger.Debug("Recommendations published", logging.BatchID(batchID), logging.Int("count", len(msgs)))
	return nil
}
