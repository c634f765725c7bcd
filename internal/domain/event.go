package domain

import (
	"fmt"
	"time"
)

// ChangeKind identifies the mutation a ChangeEvent describes.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	// ChangeReindex is the administrative signal requesting a full reindex.
	ChangeReindex ChangeKind = "reindex"
)

// Topic names, one per change kind.
const (
	TopicEntityCreated = "entity.created"
	TopicEntityUpdated = "entity.updated"
	TopicEntityDeleted = "entity.deleted"
	TopicEntityReindex = "entity.reindex"
)

// Topic returns the broker topic for the change kind.
func (k ChangeKind) Topic() string {
	switch k {
	case ChangeCreated:
		return TopicEntityCreated
	case ChangeUpdated:
		return TopicEntityUpdated
	case ChangeDeleted:
		return TopicEntityDeleted
	case ChangeReindex:
		return TopicEntityReindex
	}
	return ""
}

// ChangeEvent is the asynchronous notification that a ContentItem mutation
// occurred. Its payload may be partial or stale; consumers treat it only as
// a trigger referencing EntityID and re-read the authoritative state.
type ChangeEvent struct {
	Kind      ChangeKind     `json:"kind"`
	EntityID  string         `json:"entity_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Validate checks the fields consumers depend on. Reindex signals carry no
// entity id.
func (e *ChangeEvent) Validate() error {
	switch e.Kind {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		if e.EntityID == "" {
			return fmt.Errorf("%w: entity_id is required for %s", ErrInvalidEvent, e.Kind)
		}
	case ChangeReindex:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// EventPayload builds the normalized partial payload for a mutation event:
// dates in ISO-8601, nil tags collapsed to an empty list. Delete events do
// not call this; they carry only the entity id.
func EventPayload(item *ContentItem) map[string]any {
	return map[string]any{
		"id":               item.ID.String(),
		"title":            item.Title,
		"category":         item.Category,
		"type":             string(item.Type),
		"language":         string(item.Language),
		"tags":             item.NormalizedTags(),
		"popularity_score": item.PopularityScore,
		"publication_date": item.PublicationDate.UTC().Format("2006-01-02"),
		"updated_at":       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
