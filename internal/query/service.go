// Package query serves reads: cached search queries, cached entity
// lookups, and title suggestions. The search engine is treated as an
// availability-first dependency; when it is down the service degrades to
// an empty page rather than failing the caller.
package query

import (
	"context"
	"fmt"

	"github.com/northmedia/searchsync/internal/cache"
	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
	"github.com/northmedia/searchsync/internal/search"
)

// Engine executes queries against the search index.
type Engine interface {
	Search(ctx context.Context, query map[string]any) ([]domain.SearchResult, int64, error)
}

// Store reads entities from the authoritative store.
type Store interface {
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.ContentItem, error)
}

// Service is the read-side facade.
type Service struct {
	engine       Engine
	store        Store
	cache        *cache.Cache
	builder      *search.QueryBuilder
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
	metrics      *metrics.Metrics
}

// NewService creates the read-side service.
func NewService(engine Engine, store Store, c *cache.Cache, defaultLimit, maxLimit int, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		engine:       engine,
		store:        store,
		cache:        c,
		builder:      search.NewQueryBuilder(),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       log,
		metrics:      m,
	}
}

// Search normalizes the request, consults the cache and falls through to
// the search engine on a miss. Pages are cached under a canonical key so
// logically equivalent requests share an entry. An engine failure yields
// an empty page with a nil error.
func (s *Service) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchPage, error) {
	if err := req.Normalize(s.defaultLimit, s.maxLimit); err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	key := cache.SearchKey(req)
	var cached domain.SearchPage
	if s.cache.Get(ctx, key, &cached) {
		s.metrics.SearchQueriesTotal.WithLabelValues("cached").Inc()
		return &cached, nil
	}

	results, total, err := s.engine.Search(ctx, s.builder.Build(req))
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues("degraded").Inc()
		s.logger.Error("search engine unavailable, serving empty page",
			logger.String("query", req.Query), logger.Error(err))
		return domain.EmptySearchPage(req.Pagination.Page, req.Pagination.Limit), nil
	}

	page := domain.NewSearchPage(results, total, req.Pagination.Page, req.Pagination.Limit)
	s.cache.Set(ctx, key, page)
	s.metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
	return page, nil
}

// GetByID returns one entity, read through the cache. Soft-deleted
// entities surface as ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.ContentItem, error) {
	key := cache.EntityKey(id)
	var cached domain.ContentItem
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	item, err := s.store.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, item)
	return item, nil
}

// Suggest returns up to size title completions for a prefix. Suggestions
// are best-effort and uncached; a short prefix returns nothing.
func (s *Service) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	if len(prefix) < 2 {
		return nil, nil
	}
	if size < 1 || size > 25 {
		size = 10
	}

	results, _, err := s.engine.Search(ctx, s.builder.BuildSuggest(prefix, size))
	if err != nil {
		s.logger.Warn("suggest query failed", logger.String("prefix", prefix), logger.Error(err))
		return nil, nil
	}

	titles := make([]string, 0, len(results))
	for i := range results {
		titles = append(titles, results[i].Document.Title)
	}
	return titles, nil
}
