package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/northmedia/searchsync/internal/domain"
)

func TestNewSearchDocumentProjection(t *testing.T) {
	item := validItem()
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	doc := domain.NewSearchDocument(item, now)

	assert.Equal(t, item.ID.String(), doc.ID)
	assert.Equal(t, item.Title, doc.Title)
	assert.Equal(t, "movie", doc.Type)
	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, "2024-03-15", doc.PublicationDate)
	assert.Equal(t, "2024-04-01T12:00:00Z", doc.IndexedAt)
}

func TestNewSearchDocumentIsDeterministic(t *testing.T) {
	item := validItem()
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	first := domain.NewSearchDocument(item, now)
	second := domain.NewSearchDocument(item, now)

	assert.Equal(t, first, second)
}

func TestNewSearchDocumentNilTags(t *testing.T) {
	item := validItem()
	item.Tags = nil

	doc := domain.NewSearchDocument(item, time.Now())

	assert.NotNil(t, doc.Tags)
	assert.Empty(t, doc.Tags)
}
