package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/northmedia/searchsync/internal/domain"
)

// contentSelectList is the column list for SELECT on content_items (single
// source for schema changes).
const contentSelectList = `id, title, description, category, type, language, tags,
	popularity_score, duration_seconds, publication_date,
	source_url, thumbnail_url, platform, platform_id, embed_url,
	created_at, updated_at, deleted_at`

// ContentRepository reads the authoritative content store. All writes except
// the reconciliation purge belong to the external CRUD service.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// GetByID retrieves a content item. With includeDeleted the row is returned
// even when soft-deleted; the indexer depends on that to distinguish a stale
// update from a real removal.
func (r *ContentRepository) GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.ContentItem, error) {
	query := `SELECT ` + contentSelectList + ` FROM content_items WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	row := r.db.QueryRowContext(ctx, query, id)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return item, nil
}

// StreamActive walks every non-deleted item ordered by publication date
// ascending and invokes fn for each. Used by the full reindex; throughput is
// bounded only by the store and the caller.
func (r *ContentRepository) StreamActive(ctx context.Context, fn func(*domain.ContentItem) error) error {
	query := `SELECT ` + contentSelectList + `
		FROM content_items
		WHERE deleted_at IS NULL
		ORDER BY publication_date ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("stream active items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, scanErr := scanContentItem(rows)
		if scanErr != nil {
			return fmt.Errorf("scan content item: %w", scanErr)
		}
		if fnErr := fn(item); fnErr != nil {
			return fnErr
		}
	}
	return rows.Err()
}

// FindSoftDeletedBefore returns items whose deleted_at is earlier than the
// cutoff. The reconciliation sweep uses this to find rows overdue for purge.
func (r *ContentRepository) FindSoftDeletedBefore(ctx context.Context, cutoff time.Time) ([]domain.ContentItem, error) {
	query := `SELECT ` + contentSelectList + `
		FROM content_items
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at ASC`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find soft-deleted items: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, scanErr := scanContentItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan content item: %w", scanErr)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// HardDelete permanently removes a row. Deleting an already-absent row is
// treated as success so a retried sweep simply continues.
func (r *ContentRepository) HardDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("hard delete content item: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(row rowScanner) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var tags pq.StringArray
	var sourceURL, thumbnailURL, platform, platformID, embedURL sql.NullString

	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &item.Category, &item.Type, &item.Language, &tags,
		&item.PopularityScore, &item.DurationSeconds, &item.PublicationDate,
		&sourceURL, &thumbnailURL, &platform, &platformID, &embedURL,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Tags = tags
	item.SourceURL = sourceURL.String
	item.ThumbnailURL = thumbnailURL.String
	item.Platform = platform.String
	item.PlatformID = platformID.String
	item.EmbedURL = embedURL.String
	return &item, nil
}
