package domain

import (
	"fmt"
	"time"
)

// JobKind identifies the work an index job performs.
type JobKind string

const (
	JobIndexEntity  JobKind = "index_entity"
	JobRemoveEntity JobKind = "remove_entity"
	JobReindexAll   JobKind = "reindex_all"
)

// JobStatus represents the state of an index job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

const defaultJobMaxAttempts = 5

// IndexJob is a persisted unit of indexing work. Jobs are deduplicated by
// DedupeKey while pending, retried with backoff on failure, and parked as
// failed once attempts are exhausted.
type IndexJob struct {
	ID          string     `db:"id"            json:"id"`
	Kind        JobKind    `db:"kind"          json:"kind"`
	EntityID    *string    `db:"entity_id"     json:"entity_id,omitempty"`
	DedupeKey   string     `db:"dedupe_key"    json:"dedupe_key"`
	Status      JobStatus  `db:"status"        json:"status"`
	Attempt     int        `db:"attempt"       json:"attempt"`
	MaxAttempts int        `db:"max_attempts"  json:"max_attempts"`
	Error       *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt   time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"    json:"updated_at"`
	NextRetryAt *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
}

// NewIndexJob creates a pending job for the given kind and entity. The
// dedupe key collapses rapid successive mutations of one entity into a
// single outstanding job.
func NewIndexJob(kind JobKind, entityID string) (*IndexJob, error) {
	job := &IndexJob{
		Kind:        kind,
		Status:      JobStatusPending,
		MaxAttempts: defaultJobMaxAttempts,
	}
	switch kind {
	case JobIndexEntity:
		if entityID == "" {
			return nil, fmt.Errorf("%w: entity_id is required for %s", ErrInvalidJob, kind)
		}
		job.EntityID = &entityID
		job.DedupeKey = "index:" + entityID
	case JobRemoveEntity:
		if entityID == "" {
			return nil, fmt.Errorf("%w: entity_id is required for %s", ErrInvalidJob, kind)
		}
		job.EntityID = &entityID
		job.DedupeKey = "remove:" + entityID
	case JobReindexAll:
		job.DedupeKey = "reindex_all"
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, kind)
	}
	return job, nil
}

// ShouldRetry reports whether the job has attempts left.
func (j *IndexJob) ShouldRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// IsExhausted reports whether all attempts have been used.
func (j *IndexJob) IsExhausted() bool {
	return !j.ShouldRetry()
}

// JobStats holds queue statistics for operational inspection.
type JobStats struct {
	Pending         int64   `json:"pending"`
	Running         int64   `json:"running"`
	Done            int64   `json:"done"`
	FailedRetryable int64   `json:"failed_retryable"`
	FailedExhausted int64   `json:"failed_exhausted"`
	AvgRunLagSecs   float64 `json:"avg_run_lag_seconds"`
}
