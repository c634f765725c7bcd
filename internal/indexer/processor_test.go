package indexer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/indexer"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/media"
)

type fakeStore struct {
	items map[string]*domain.ContentItem
}

func (s *fakeStore) GetByID(_ context.Context, id string, includeDeleted bool) (*domain.ContentItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if item.IsDeleted() && !includeDeleted {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *fakeStore) StreamActive(_ context.Context, fn func(*domain.ContentItem) error) error {
	for _, item := range s.items {
		if item.IsDeleted() {
			continue
		}
		copied := *item
		if err := fn(&copied); err != nil {
			return err
		}
	}
	return nil
}

type fakeIndex struct {
	docs      map[string]*domain.SearchDocument
	upsertErr error
}

func (i *fakeIndex) Upsert(_ context.Context, doc *domain.SearchDocument) error {
	if i.upsertErr != nil {
		return i.upsertErr
	}
	i.docs[doc.ID] = doc
	return nil
}

func (i *fakeIndex) Delete(_ context.Context, id string) error {
	// A missing document deletes cleanly, matching the real index.
	delete(i.docs, id)
	return nil
}

func newFixture() (*indexer.Processor, *fakeStore, *fakeIndex) {
	store := &fakeStore{items: map[string]*domain.ContentItem{}}
	index := &fakeIndex{docs: map[string]*domain.SearchDocument{}}
	p := indexer.NewProcessor(store, index, media.NewRegistry(), logger.NewNopLogger())
	return p, store, index
}

func storedItem(id uuid.UUID) *domain.ContentItem {
	return &domain.ContentItem{
		ID:              id,
		Title:           "Northern Lights",
		Description:     "A documentary",
		Category:        "documentary",
		Type:            domain.ContentTypeSeries,
		Language:        domain.LanguageEnglish,
		Tags:            []string{"nature"},
		PopularityScore: 10,
		DurationSeconds: 3600,
		PublicationDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestIndexEntityProjectsStoreState(t *testing.T) {
	p, store, index := newFixture()
	id := uuid.New()
	store.items[id.String()] = storedItem(id)

	require.NoError(t, p.IndexEntity(context.Background(), id.String()))

	doc, ok := index.docs[id.String()]
	require.True(t, ok)
	assert.Equal(t, "Northern Lights", doc.Title)
	assert.Equal(t, "2024-03-15", doc.PublicationDate)
}

func TestIndexEntityIsIdempotent(t *testing.T) {
	p, store, index := newFixture()
	id := uuid.New()
	store.items[id.String()] = storedItem(id)
	ctx := context.Background()

	require.NoError(t, p.IndexEntity(ctx, id.String()))
	first := *index.docs[id.String()]

	require.NoError(t, p.IndexEntity(ctx, id.String()))
	second := *index.docs[id.String()]

	// IndexedAt moves with the clock; everything else must be identical.
	first.IndexedAt, second.IndexedAt = "", ""
	assert.Equal(t, first, second)
}

func TestIndexEntityConvergesToLatestState(t *testing.T) {
	p, store, index := newFixture()
	id := uuid.New()
	store.items[id.String()] = storedItem(id)
	ctx := context.Background()

	require.NoError(t, p.IndexEntity(ctx, id.String()))

	// The event payload is only a trigger; a re-delivered stale event must
	// still project the current store state.
	store.items[id.String()].Title = "Northern Lights: Remastered"
	require.NoError(t, p.IndexEntity(ctx, id.String()))

	assert.Equal(t, "Northern Lights: Remastered", index.docs[id.String()].Title)
}

func TestIndexEntityMissingEntityIsNoOp(t *testing.T) {
	p, _, index := newFixture()

	require.NoError(t, p.IndexEntity(context.Background(), uuid.NewString()))
	assert.Empty(t, index.docs)
}

func TestIndexEntitySoftDeletedRemovesDocument(t *testing.T) {
	p, store, index := newFixture()
	id := uuid.New()
	item := storedItem(id)
	deletedAt := time.Now()
	item.DeletedAt = &deletedAt
	store.items[id.String()] = item
	index.docs[id.String()] = &domain.SearchDocument{ID: id.String()}

	// A stale index job arriving after the delete must not resurrect the
	// document.
	require.NoError(t, p.IndexEntity(context.Background(), id.String()))
	assert.NotContains(t, index.docs, id.String())
}

func TestIndexEntityPropagatesUpsertError(t *testing.T) {
	p, store, index := newFixture()
	id := uuid.New()
	store.items[id.String()] = storedItem(id)
	index.upsertErr = errors.New("index unavailable")

	assert.Error(t, p.IndexEntity(context.Background(), id.String()))
}

func TestRemoveEntityMissingDocumentSucceeds(t *testing.T) {
	p, _, _ := newFixture()

	assert.NoError(t, p.RemoveEntity(context.Background(), uuid.NewString()))
}

func TestReindexAllProjectsEveryActiveItem(t *testing.T) {
	p, store, index := newFixture()
	ctx := context.Background()

	active1, active2, deleted := uuid.New(), uuid.New(), uuid.New()
	store.items[active1.String()] = storedItem(active1)
	store.items[active2.String()] = storedItem(active2)

	deletedItem := storedItem(deleted)
	deletedAt := time.Now()
	deletedItem.DeletedAt = &deletedAt
	store.items[deleted.String()] = deletedItem

	require.NoError(t, p.ReindexAll(ctx))

	assert.Len(t, index.docs, 2)
	assert.Contains(t, index.docs, active1.String())
	assert.Contains(t, index.docs, active2.String())
	assert.NotContains(t, index.docs, deleted.String())
}
