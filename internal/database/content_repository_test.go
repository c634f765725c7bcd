package database_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/northmedia/searchsync/internal/database"
	"github.com/northmedia/searchsync/internal/domain"
)

var contentColumns = []string{
	"id", "title", "description", "category", "type", "language", "tags",
	"popularity_score", "duration_seconds", "publication_date",
	"source_url", "thumbnail_url", "platform", "platform_id", "embed_url",
	"created_at", "updated_at", "deleted_at",
}

func newMockContentRepo(t *testing.T) (*database.ContentRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return database.NewContentRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func contentRow(id uuid.UUID, deletedAt *time.Time) []driver.Value {
	now := time.Now()
	row := []driver.Value{
		id.String(), "Northern Lights", "A documentary", "documentary", "movie", "en", "{nature,north}",
		42, 5400, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		"https://youtube.com/watch?v=abc", nil, nil, nil, nil,
		now, now, nil,
	}
	if deletedAt != nil {
		row[len(row)-1] = *deletedAt
	}
	return row
}

func TestContentRepository_GetByID(t *testing.T) {
	repo, mock := newMockContentRepo(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(contentColumns).AddRow(contentRow(id, nil)...))

	item, err := repo.GetByID(ctx, id.String(), false)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if item.ID != id {
		t.Errorf("GetByID() id = %v, want %v", item.ID, id)
	}
	if item.Type != domain.ContentTypeMovie {
		t.Errorf("GetByID() type = %v, want movie", item.Type)
	}
	if len(item.Tags) != 2 {
		t.Errorf("GetByID() tags = %v, want two entries", item.Tags)
	}
	if item.ThumbnailURL != "" {
		t.Errorf("GetByID() thumbnail = %q, want empty for NULL column", item.ThumbnailURL)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestContentRepository_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockContentRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(contentColumns))

	_, err := repo.GetByID(context.Background(), "missing", true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestContentRepository_StreamActive(t *testing.T) {
	repo, mock := newMockContentRepo(t)

	idA, idB := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WillReturnRows(sqlmock.NewRows(contentColumns).
			AddRow(contentRow(idA, nil)...).
			AddRow(contentRow(idB, nil)...))

	var seen []uuid.UUID
	err := repo.StreamActive(context.Background(), func(item *domain.ContentItem) error {
		seen = append(seen, item.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamActive() error = %v", err)
	}
	if len(seen) != 2 || seen[0] != idA || seen[1] != idB {
		t.Errorf("StreamActive() visited %v, want [%v %v]", seen, idA, idB)
	}
}

func TestContentRepository_StreamActiveStopsOnCallbackError(t *testing.T) {
	repo, mock := newMockContentRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WillReturnRows(sqlmock.NewRows(contentColumns).
			AddRow(contentRow(uuid.New(), nil)...).
			AddRow(contentRow(uuid.New(), nil)...))

	wantErr := errors.New("index unavailable")
	err := repo.StreamActive(context.Background(), func(*domain.ContentItem) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("StreamActive() error = %v, want callback error", err)
	}
}

func TestContentRepository_FindSoftDeletedBefore(t *testing.T) {
	repo, mock := newMockContentRepo(t)

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	deletedAt := cutoff.Add(-24 * time.Hour)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(contentColumns).AddRow(contentRow(id, &deletedAt)...))

	items, err := repo.FindSoftDeletedBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("FindSoftDeletedBefore() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Errorf("FindSoftDeletedBefore() = %v, want one item %v", items, id)
	}
	if !items[0].IsDeleted() {
		t.Errorf("FindSoftDeletedBefore() returned item without deleted_at")
	}
}

func TestContentRepository_HardDeleteAbsentRowSucceeds(t *testing.T) {
	repo, mock := newMockContentRepo(t)

	mock.ExpectExec("DELETE FROM content_items").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.HardDelete(context.Background(), "gone"); err != nil {
		t.Errorf("HardDelete() on absent row error = %v, want nil", err)
	}
}
