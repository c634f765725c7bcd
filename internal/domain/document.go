package domain

import "time"

// SearchDocument is the denormalized projection of a ContentItem stored in
// the search index. Dates are ISO-8601 strings; tags are exact-match
// keywords. The document id is the entity id.
type SearchDocument struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Type            string   `json:"type"`
	Language        string   `json:"language"`
	Tags            []string `json:"tags"`
	PopularityScore int      `json:"popularity_score"`
	DurationSeconds int      `json:"duration_seconds"`
	PublicationDate string   `json:"publication_date"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	Platform        string   `json:"platform,omitempty"`
	EmbedURL        string   `json:"embed_url,omitempty"`
	IndexedAt       string   `json:"indexed_at"`
}

// NewSearchDocument projects a content item into its index document. The
// mapping is deterministic apart from IndexedAt, so upserting the same item
// twice overwrites the document with identical content.
func NewSearchDocument(item *ContentItem, now time.Time) *SearchDocument {
	return &SearchDocument{
		ID:              item.ID.String(),
		Title:           item.Title,
		Description:     item.Description,
		Category:        item.Category,
		Type:            string(item.Type),
		Language:        string(item.Language),
		Tags:            item.NormalizedTags(),
		PopularityScore: item.PopularityScore,
		DurationSeconds: item.DurationSeconds,
		PublicationDate: item.PublicationDate.UTC().Format("2006-01-02"),
		ThumbnailURL:    item.ThumbnailURL,
		Platform:        item.Platform,
		EmbedURL:        item.EmbedURL,
		IndexedAt:       now.UTC().Format(time.RFC3339),
	}
}
