package domain

import "errors"

// ErrNotFound is returned when an entity does not exist in the store.
var ErrNotFound = errors.New("entity not found")

// ErrInvalidContentItem is returned when a content item fails validation.
var ErrInvalidContentItem = errors.New("invalid content item")

// ErrInvalidEvent is returned when a change event cannot be decoded or is
// missing required fields.
var ErrInvalidEvent = errors.New("invalid change event")

// ErrInvalidJob is returned when an index job is malformed.
var ErrInvalidJob = errors.New("invalid index job")
