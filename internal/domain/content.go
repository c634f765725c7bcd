// Package domain contains the core domain models for the search sync
// pipeline.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentType classifies a content item.
type ContentType string

const (
	ContentTypeMovie   ContentType = "movie"
	ContentTypeSeries  ContentType = "series"
	ContentTypeEpisode ContentType = "episode"
	ContentTypeClip    ContentType = "clip"
	ContentTypeTrailer ContentType = "trailer"
)

// Valid reports whether the content type is a known value.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeMovie, ContentTypeSeries, ContentTypeEpisode, ContentTypeClip, ContentTypeTrailer:
		return true
	}
	return false
}

// IsVideo reports whether the type carries platform media fields.
func (t ContentType) IsVideo() bool {
	switch t {
	case ContentTypeMovie, ContentTypeEpisode, ContentTypeClip, ContentTypeTrailer:
		return true
	}
	return false
}

// Language is an ISO 639-1 language code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFrench  Language = "fr"
	LanguageGerman  Language = "de"
	LanguageSpanish Language = "es"
	LanguageOjibwe  Language = "oj"
)

// ContentItem is the authoritative record for a video or program. The
// relational store owns it; the search index and cache only hold projections
// derived from it.
type ContentItem struct {
	ID              uuid.UUID   `db:"id"               json:"id"`
	Title           string      `db:"title"            json:"title"`
	Description     string      `db:"description"      json:"description"`
	Category        string      `db:"category"         json:"category"`
	Type            ContentType `db:"type"             json:"type"`
	Language        Language    `db:"language"         json:"language"`
	Tags            []string    `db:"tags"             json:"tags"`
	PopularityScore int         `db:"popularity_score" json:"popularity_score"`
	DurationSeconds int         `db:"duration_seconds" json:"duration_seconds"`
	PublicationDate time.Time   `db:"publication_date" json:"publication_date"`

	// Media fields for video-like items.
	SourceURL    string `db:"source_url"    json:"source_url,omitempty"`
	ThumbnailURL string `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	Platform     string `db:"platform"      json:"platform,omitempty"`
	PlatformID   string `db:"platform_id"   json:"platform_id,omitempty"`
	EmbedURL     string `db:"embed_url"     json:"embed_url,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the item is soft-deleted. Soft-deleted items are
// excluded from all query results but remain in the store until permanently
// purged.
func (c *ContentItem) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Validate checks the invariants the store guarantees for active items.
func (c *ContentItem) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidContentItem)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidContentItem)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidContentItem, c.Type)
	}
	if c.PopularityScore < 0 {
		return fmt.Errorf("%w: popularity_score must be >= 0, got %d", ErrInvalidContentItem, c.PopularityScore)
	}
	if c.DurationSeconds < 1 {
		return fmt.Errorf("%w: duration_seconds must be >= 1, got %d", ErrInvalidContentItem, c.DurationSeconds)
	}
	return nil
}

// NormalizedTags returns the tags with nil collapsed to an empty slice.
// Callers serializing items must never emit null for tags.
func (c *ContentItem) NormalizedTags() []string {
	if c.Tags == nil {
		return []string{}
	}
	return c.Tags
}
