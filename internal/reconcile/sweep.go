// Package reconcile purges soft-deleted content whose retention window
// has elapsed, removing both the search document and the database row.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

// Store finds and removes expired soft-deleted rows.
type Store interface {
	FindSoftDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.ContentItem, error)
	HardDelete(ctx context.Context, id string) error
}

// DocumentIndex deletes search documents.
type DocumentIndex interface {
	Delete(ctx context.Context, id string) error
}

// Sweeper runs the retention sweep.
type Sweeper struct {
	store     Store
	index     DocumentIndex
	retention time.Duration
	logger    logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewSweeper creates a sweeper. Retention is how long soft-deleted rows
// are kept before being purged.
func NewSweeper(store Store, index DocumentIndex, retention time.Duration, log logger.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		store:     store,
		index:     index,
		retention: retention,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// Sweep purges every row soft-deleted longer ago than the retention
// window. The search document goes first so an index-delete failure
// leaves the row in place for the next run. Per-entity failures are
// logged and skipped; one bad entity never aborts the batch.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)

	expired, err := s.store.FindSoftDeletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find expired entities: %w", err)
	}
	if len(expired) == 0 {
		s.logger.Debug("retention sweep found nothing to purge")
		return nil
	}

	var purged, failed int
	for i := range expired {
		id := expired[i].ID.String()

		if err := s.index.Delete(ctx, id); err != nil {
			failed++
			s.logger.Error("retention sweep: index delete failed",
				logger.String("entity_id", id), logger.Error(err))
			continue
		}
		if err := s.store.HardDelete(ctx, id); err != nil {
			failed++
			s.logger.Error("retention sweep: hard delete failed",
				logger.String("entity_id", id), logger.Error(err))
			continue
		}

		purged++
		s.metrics.ReconcilePurgedTotal.Inc()
	}

	s.logger.Info("retention sweep completed",
		logger.Int("candidates", len(expired)),
		logger.Int("purged", purged),
		logger.Int("failed", failed),
		logger.Time("cutoff", cutoff))
	return nil
}
