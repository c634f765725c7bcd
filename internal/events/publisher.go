// Package events implements change event publication and consumption over
// Kafka. Events are triggers only: consumers re-read authoritative state and
// must tolerate duplicates and reordering.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

const publishTimeout = 10 * time.Second

// Publisher emits change events after successful mutations. Publish failures
// are logged and counted but never surfaced to the mutating caller: index
// pipeline availability is decoupled from the write path, and the
// reconciliation sweep repairs any resulting drift.
type Publisher struct {
	writer  *kafka.Writer
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher over the given brokers. Messages are
// keyed by entity id so all events for one entity land on one partition.
func NewPublisher(brokers []string, log logger.Logger, m *metrics.Metrics) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Publisher{
		writer:  w,
		logger:  log,
		metrics: m,
	}
}

// PublishCreated emits an entity.created event with the normalized partial
// payload.
func (p *Publisher) PublishCreated(ctx context.Context, item *domain.ContentItem) {
	p.publish(ctx, domain.ChangeCreated, item.ID.String(), domain.EventPayload(item))
}

// PublishUpdated emits an entity.updated event with the normalized partial
// payload.
func (p *Publisher) PublishUpdated(ctx context.Context, item *domain.ContentItem) {
	p.publish(ctx, domain.ChangeUpdated, item.ID.String(), domain.EventPayload(item))
}

// PublishDeleted emits an entity.deleted event carrying only the entity id.
func (p *Publisher) PublishDeleted(ctx context.Context, entityID string) {
	p.publish(ctx, domain.ChangeDeleted, entityID, nil)
}

// PublishReindexRequested emits the administrative full-reindex signal.
func (p *Publisher) PublishReindexRequested(ctx context.Context) {
	p.publish(ctx, domain.ChangeReindex, "", nil)
}

func (p *Publisher) publish(ctx context.Context, kind domain.ChangeKind, entityID string, payload map[string]any) {
	topic := kind.Topic()
	event := domain.ChangeEvent{
		Kind:      kind,
		EntityID:  entityID,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.recordFailure(topic, entityID, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(entityID),
		Value: value,
	}
	if err := p.writer.WriteMessages(pubCtx, msg); err != nil {
		p.recordFailure(topic, entityID, err)
		return
	}

	p.metrics.EventsPublishedTotal.WithLabelValues(topic).Inc()
	p.logger.Debug("change event published",
		logger.String("topic", topic),
		logger.String("entity_id", entityID))
}

func (p *Publisher) recordFailure(topic, entityID string, err error) {
	p.metrics.PublishFailuresTotal.WithLabelValues(topic).Inc()
	p.logger.Error("failed to publish change event",
		logger.String("topic", topic),
		logger.String("entity_id", entityID),
		logger.Error(err))
}

// Close flushes pending writes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
