package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/northmedia/searchsync/internal/cache"
	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

// JobEnqueuer enqueues index jobs triggered by change events. The boolean
// result reports whether a new job was created or an equivalent pending job
// already existed.
type JobEnqueuer interface {
	EnqueueIndex(ctx context.Context, entityID string) (bool, error)
	EnqueueRemove(ctx context.Context, entityID string) (bool, error)
	EnqueueReindexAll(ctx context.Context) (bool, error)
}

// Invalidator drops cache entries affected by a mutation.
type Invalidator interface {
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

const (
	handleRetryDelay = time.Second
	fetchRetryDelay  = time.Second
)

// ListenerConfig holds the Kafka consumption settings.
type ListenerConfig struct {
	Brokers       []string
	ConsumerGroup string
	// Prefetch bounds the reader's buffered message window per consumer.
	Prefetch int
}

// Listener consumes change events, enqueues the matching index jobs, and
// invalidates affected cache entries. A message is committed only after
// enqueue and invalidation both succeeded; on failure the message is retried
// in place, preserving the broker's at-least-once contract. Duplicate
// deliveries are safe: enqueue dedupes by key and invalidation is idempotent.
type Listener struct {
	cfg     ListenerConfig
	jobs    JobEnqueuer
	cache   Invalidator
	logger  logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewListener creates a listener for the entity change topics.
func NewListener(cfg ListenerConfig, jobs JobEnqueuer, inv Invalidator, log logger.Logger, m *metrics.Metrics) *Listener {
	return &Listener{
		cfg:     cfg,
		jobs:    jobs,
		cache:   inv,
		logger:  log,
		metrics: m,
		tracer:  otel.Tracer("change-listener"),
	}
}

// Run starts one consumer per topic and blocks until the context is
// cancelled. Cross-entity ordering is not guaranteed; same-entity ordering
// is best-effort broker order, and the index processor re-reads current
// state so out-of-order delivery self-corrects.
func (l *Listener) Run(ctx context.Context) error {
	topics := []string{
		domain.TopicEntityCreated,
		domain.TopicEntityUpdated,
		domain.TopicEntityDeleted,
		domain.TopicEntityReindex,
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		g.Go(func() error {
			return l.consume(ctx, topic)
		})
	}
	return g.Wait()
}

func (l *Listener) consume(ctx context.Context, topic string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:       l.cfg.Brokers,
		Topic:         topic,
		GroupID:       l.cfg.ConsumerGroup,
		QueueCapacity: l.cfg.Prefetch,
		MinBytes:      1,
		MaxBytes:      10e6,
	})
	defer reader.Close()

	log := l.logger.With(logger.String("topic", topic))
	log.Info("change listener started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("change listener stopping")
				return nil
			}
			log.Error("failed to fetch message", logger.Error(err))
			// A broker outage would otherwise spin this loop hot.
			if !waitRetry(ctx, fetchRetryDelay) {
				return nil
			}
			continue
		}

		// Retry the same message until handled: committing a later offset
		// would implicitly acknowledge this one.
		for {
			if handleErr := l.handleMessage(ctx, topic, msg.Value); handleErr == nil {
				break
			} else {
				l.metrics.EventHandleFailures.WithLabelValues(topic).Inc()
				log.Error("event handling failed, will retry without ack",
					logger.Int64("offset", msg.Offset),
					logger.Error(handleErr))
			}
			if !waitRetry(ctx, handleRetryDelay) {
				return nil
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The work is done and idempotent; redelivery after a failed
			// commit repeats it harmlessly.
			log.Error("failed to commit message",
				logger.Int64("offset", msg.Offset),
				logger.Error(err))
			continue
		}
		l.metrics.EventsConsumedTotal.WithLabelValues(topic).Inc()
	}
}

// waitRetry sleeps for the retry delay, reporting false when the context
// was cancelled first.
func waitRetry(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Listener) handleMessage(ctx context.Context, topic string, value []byte) error {
	var event domain.ChangeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// A malformed message can never succeed; log and ack it rather than
		// stalling the partition.
		l.logger.Warn("dropping undecodable change event",
			logger.String("topic", topic),
			logger.Error(err))
		return nil
	}
	if err := event.Validate(); err != nil {
		l.logger.Warn("dropping invalid change event",
			logger.String("topic", topic),
			logger.Error(err))
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "listener.handle",
		trace.WithAttributes(
			attribute.String("event.kind", string(event.Kind)),
			attribute.String("entity.id", event.EntityID),
		))
	defer span.End()

	switch event.Kind {
	case domain.ChangeCreated, domain.ChangeUpdated:
		if _, err := l.jobs.EnqueueIndex(ctx, event.EntityID); err != nil {
			return err
		}
		return l.invalidate(ctx, event.EntityID)
	case domain.ChangeDeleted:
		if _, err := l.jobs.EnqueueRemove(ctx, event.EntityID); err != nil {
			return err
		}
		return l.invalidate(ctx, event.EntityID)
	case domain.ChangeReindex:
		_, err := l.jobs.EnqueueReindexAll(ctx)
		return err
	}
	return nil
}

// invalidate drops the entity's own cache entry and every cached search
// page. Any mutation can change the contents or order of an unbounded set of
// queries, so search invalidation is namespace-wide.
func (l *Listener) invalidate(ctx context.Context, entityID string) error {
	if err := l.cache.Delete(ctx, cache.EntityKey(entityID)); err != nil {
		return err
	}
	if _, err := l.cache.DeleteByPrefix(ctx, cache.SearchPrefix); err != nil {
		return err
	}
	return nil
}
