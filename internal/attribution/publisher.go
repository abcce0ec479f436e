package attribution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sift/internal/broker"
	"sift/internal/logger"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/models"
)

// EventPublisher announces attribution outcomes to downstream consumers.
// Publishing is fire-and-forget: a broker outage never fails a run.
type EventPublisher interface {
	EntityAssigned(ctx context.Context, messageID, entityID, method string)
	RunCompleted(ctx context.Context, record RunRecord)
}

type NoopPublisher struct{}

func (NoopPublisher) EntityAssigned(context.Context, string, string, string) {}
func (NoopPublisher) RunCompleted(context.Context, RunRecord)                {}

type KafkaPublisher struct {
	producer    broker.Producer
	topic       string
	serviceName string
	logger      logger.Logger
}

func NewKafkaPublisher(producer broker.Producer, topic, serviceName string, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
		logger:      log,
	}
}

func (p *KafkaPublisher) EntityAssigned(ctx context.Context, messageID, entityID, method string) {
	p.publish(ctx, models.EventTypeEntityAssigned, map[string]interface{}{
		"message_id": messageID,
		"entity_id":  entityID,
		"method":     method,
	})
}

func (p *KafkaPublisher) RunCompleted(ctx context.Context, record RunRecord) {
	p.publish(ctx, models.EventTypeRunCompleted, map[string]interface{}{
		"run_id":           record.RunID,
		"processed":        record.Processed,
		"assigned":         record.Assigned,
		"unassigned":       record.Unassigned,
		"skipped":          record.Skipped,
		"failed":           record.Failed,
		"deadline_skipped": record.DeadlineSkipped,
		"duration_ms":      record.DurationMS,
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	event := models.EventEnvelope{
		ID:        uuid.New().String(),
		Source:    p.serviceName,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
		Metadata: models.Metadata{
			TraceID: logging.GetTraceID(ctx),
			RunID:   logging.GetRunID(ctx),
		},
	}

	if err := p.producer.Publish(ctx, p.topic, event); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to publish event",
			"error", err,
			"event_type", eventType,
			"topic", p.topic,
		)
		return
	}

	metrics.IncKafkaMessagesWritten(p.serviceName, p.topic)
}
