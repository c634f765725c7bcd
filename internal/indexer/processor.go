// Package indexer projects authoritative content state into the search
// index. Jobs carry only entity ids; the processor always re-reads the
// store, so duplicate or out-of-order events converge to the latest
// persisted state.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/media"
	"github.com/northmedia/searchsync/internal/queue"
)

// Store reads the authoritative content store.
type Store interface {
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.ContentItem, error)
	StreamActive(ctx context.Context, fn func(*domain.ContentItem) error) error
}

// DocumentIndex writes the search index.
type DocumentIndex interface {
	Upsert(ctx context.Context, doc *domain.SearchDocument) error
	Delete(ctx context.Context, id string) error
}

// Processor executes index jobs.
type Processor struct {
	store     Store
	index     DocumentIndex
	providers *media.Registry
	logger    logger.Logger
	now       func() time.Time
}

// NewProcessor creates a processor.
func NewProcessor(store Store, index DocumentIndex, providers *media.Registry, log logger.Logger) *Processor {
	return &Processor{
		store:     store,
		index:     index,
		providers: providers,
		logger:    log,
		now:       time.Now,
	}
}

// RegisterHandlers binds the processor to the queue's job kinds.
func (p *Processor) RegisterHandlers(svc *queue.Service) {
	svc.RegisterHandler(domain.JobIndexEntity, p.handleIndexEntity)
	svc.RegisterHandler(domain.JobRemoveEntity, p.handleRemoveEntity)
	svc.RegisterHandler(domain.JobReindexAll, p.handleReindexAll)
}

func (p *Processor) handleIndexEntity(ctx context.Context, job *domain.IndexJob) error {
	if job.EntityID == nil {
		return fmt.Errorf("%w: index_entity job without entity_id", domain.ErrInvalidJob)
	}
	return p.IndexEntity(ctx, *job.EntityID)
}

func (p *Processor) handleRemoveEntity(ctx context.Context, job *domain.IndexJob) error {
	if job.EntityID == nil {
		return fmt.Errorf("%w: remove_entity job without entity_id", domain.ErrInvalidJob)
	}
	return p.RemoveEntity(ctx, *job.EntityID)
}

func (p *Processor) handleReindexAll(ctx context.Context, _ *domain.IndexJob) error {
	return p.ReindexAll(ctx)
}

// IndexEntity re-reads the entity, including soft-deleted rows, and upserts
// its projection. A missing entity is a stale job and a no-op. A
// soft-deleted entity delegates to RemoveEntity, which guards against a
// stale update event arriving after a delete.
func (p *Processor) IndexEntity(ctx context.Context, id string) error {
	item, err := p.store.GetByID(ctx, id, true)
	if errors.Is(err, domain.ErrNotFound) {
		p.logger.Debug("entity gone, skipping index job", logger.String("entity_id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read entity %s: %w", id, err)
	}

	if item.IsDeleted() {
		return p.RemoveEntity(ctx, id)
	}

	doc := p.buildDocument(item)
	if err := p.index.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upsert document %s: %w", id, err)
	}

	p.logger.Debug("entity indexed", logger.String("entity_id", id))
	return nil
}

// RemoveEntity deletes the entity's document. The index treats missing
// documents as success, so duplicate deliveries are harmless.
func (p *Processor) RemoveEntity(ctx context.Context, id string) error {
	if err := p.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove document %s: %w", id, err)
	}
	p.logger.Debug("entity removed from index", logger.String("entity_id", id))
	return nil
}

// ReindexAll streams every non-deleted entity ordered by publication date
// ascending and upserts each sequentially. Throughput is bounded only by
// the store and the search engine.
func (p *Processor) ReindexAll(ctx context.Context) error {
	var count int
	err := p.store.StreamActive(ctx, func(item *domain.ContentItem) error {
		if err := p.index.Upsert(ctx, p.buildDocument(item)); err != nil {
			return fmt.Errorf("upsert document %s: %w", item.ID, err)
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("reindex all: %w", err)
	}

	p.logger.Info("full reindex completed", logger.Int("documents", count))
	return nil
}

// buildDocument maps the item to its projection, deriving missing platform
// media fields from the source URL when a provider recognizes it. Provider
// misses are fine; the document simply keeps what the store has.
func (p *Processor) buildDocument(item *domain.ContentItem) *domain.SearchDocument {
	if item.Type.IsVideo() && item.SourceURL != "" && (item.Platform == "" || item.EmbedURL == "") {
		p.enrichMedia(item)
	}
	return domain.NewSearchDocument(item, p.now())
}

func (p *Processor) enrichMedia(item *domain.ContentItem) {
	provider, err := p.providers.Resolve(item.SourceURL)
	if err != nil {
		return
	}

	platformID, err := provider.ExtractID(item.SourceURL)
	if err != nil {
		p.logger.Debug("could not extract platform id",
			logger.String("entity_id", item.ID.String()),
			logger.String("source_url", item.SourceURL),
			logger.Error(err))
		return
	}

	if item.Platform == "" {
		item.Platform = provider.Name()
	}
	if item.PlatformID == "" {
		item.PlatformID = platformID
	}
	if item.EmbedURL == "" || item.ThumbnailURL == "" {
		// Metadata fetch is best-effort; the platform id alone already
		// improves the document.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		meta, metaErr := provider.FetchMetadata(ctx, platformID)
		if metaErr != nil {
			p.logger.Debug("could not fetch platform metadata",
				logger.String("entity_id", item.ID.String()),
				logger.Error(metaErr))
			return
		}
		if item.EmbedURL == "" {
			item.EmbedURL = meta.EmbedURL
		}
		if item.ThumbnailURL == "" {
			item.ThumbnailURL = meta.ThumbnailURL
		}
	}
}
