package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northmedia/searchsync/internal/cache"
	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
	"github.com/northmedia/searchsync/internal/query"
)

type fakeEngine struct {
	results []domain.SearchResult
	total   int64
	err     error
	calls   int
}

func (e *fakeEngine) Search(context.Context, map[string]any) ([]domain.SearchResult, int64, error) {
	e.calls++
	if e.err != nil {
		return nil, 0, e.err
	}
	return e.results, e.total, nil
}

type fakeQueryStore struct {
	items map[string]*domain.ContentItem
	calls int
}

func (s *fakeQueryStore) GetByID(_ context.Context, id string, includeDeleted bool) (*domain.ContentItem, error) {
	s.calls++
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if item.IsDeleted() && !includeDeleted {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func newService(t *testing.T, engine *fakeEngine, store *fakeQueryStore) *query.Service {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	c := cache.New(client, "searchsync", 5*time.Minute, logger.NewNopLogger(), metrics.New())
	return query.NewService(engine, store, c, 10, 100, logger.NewNopLogger(), metrics.New())
}

func searchHit(title string) domain.SearchResult {
	return domain.SearchResult{
		Document: domain.SearchDocument{ID: uuid.NewString(), Title: title},
		Score:    1.5,
	}
}

func TestSearchReturnsEnginePage(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{searchHit("Northern Lights")}, total: 25}
	svc := newService(t, engine, &fakeQueryStore{})

	page, err := svc.Search(context.Background(), &domain.SearchRequest{
		Query:      "northern",
		Pagination: domain.Pagination{Page: 2, Limit: 10},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(25), page.TotalHits)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Northern Lights", page.Results[0].Document.Title)
}

func TestSearchSecondCallServedFromCache(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{searchHit("Northern Lights")}, total: 1}
	svc := newService(t, engine, &fakeQueryStore{})
	ctx := context.Background()

	req := func() *domain.SearchRequest {
		return &domain.SearchRequest{Query: "northern"}
	}

	first, err := svc.Search(ctx, req())
	require.NoError(t, err)
	second, err := svc.Search(ctx, req())
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, first.TotalHits, second.TotalHits)
}

func TestSearchDegradesToEmptyPageOnEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("connection refused")}
	svc := newService(t, engine, &fakeQueryStore{})

	page, err := svc.Search(context.Background(), &domain.SearchRequest{
		Query:      "northern",
		Pagination: domain.Pagination{Page: 1, Limit: 10},
	})

	// Availability over correctness: the caller sees an empty page, not an
	// error.
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Equal(t, int64(0), page.TotalHits)
}

func TestSearchRejectsInvalidRequest(t *testing.T) {
	svc := newService(t, &fakeEngine{}, &fakeQueryStore{})

	_, err := svc.Search(context.Background(), &domain.SearchRequest{
		Pagination: domain.Pagination{Limit: 500},
	})
	assert.Error(t, err)
}

func TestGetByIDReadsThroughCache(t *testing.T) {
	store := &fakeQueryStore{items: map[string]*domain.ContentItem{}}
	id := uuid.New()
	store.items[id.String()] = &domain.ContentItem{ID: id, Title: "Northern Lights"}

	svc := newService(t, &fakeEngine{}, store)
	ctx := context.Background()

	first, err := svc.GetByID(ctx, id.String())
	require.NoError(t, err)
	second, err := svc.GetByID(ctx, id.String())
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls)
	assert.Equal(t, first.Title, second.Title)
}

func TestGetByIDSoftDeletedIsNotFound(t *testing.T) {
	store := &fakeQueryStore{items: map[string]*domain.ContentItem{}}
	id := uuid.New()
	deletedAt := time.Now()
	store.items[id.String()] = &domain.ContentItem{ID: id, Title: "Gone", DeletedAt: &deletedAt}

	svc := newService(t, &fakeEngine{}, store)

	_, err := svc.GetByID(context.Background(), id.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSuggestReturnsTitles(t *testing.T) {
	engine := &fakeEngine{results: []domain.SearchResult{
		searchHit("Northern Lights"),
		searchHit("Northern Exposure"),
	}}
	svc := newService(t, engine, &fakeQueryStore{})

	titles, err := svc.Suggest(context.Background(), "nort", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Northern Lights", "Northern Exposure"}, titles)
}

func TestSuggestShortPrefixReturnsNothing(t *testing.T) {
	engine := &fakeEngine{}
	svc := newService(t, engine, &fakeQueryStore{})

	titles, err := svc.Suggest(context.Background(), "n", 10)
	require.NoError(t, err)
	assert.Empty(t, titles)
	assert.Zero(t, engine.calls)
}

func TestSuggestDegradesOnEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("connection refused")}
	svc := newService(t, engine, &fakeQueryStore{})

	titles, err := svc.Suggest(context.Background(), "nort", 10)
	require.NoError(t, err)
	assert.Empty(t, titles)
}
