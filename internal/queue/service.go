// Package queue provides the persistent index job queue: enqueue with
// dedupe, a polling worker pool with retry and backoff, and the cron
// scheduler for recurring jobs.
package queue

import (
	"context"
	"time"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

// Repository is the persistence contract the queue runs on, implemented by
// database.JobRepository.
type Repository interface {
	Enqueue(ctx context.Context, job *domain.IndexJob) (bool, error)
	Claim(ctx context.Context, limit int) ([]domain.IndexJob, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
	Cleanup(ctx context.Context, doneRetention, failedRetention time.Duration) (int64, error)
	Stats(ctx context.Context) (*domain.JobStats, error)
	ListFailed(ctx context.Context, limit int) ([]domain.IndexJob, error)
}

// Handler executes one job kind. A returned error triggers retry with
// backoff until the job's attempts are exhausted.
type Handler func(ctx context.Context, job *domain.IndexJob) error

// Service is the job queue facade: producers enqueue through it and the
// worker pool dispatches claimed jobs to registered handlers.
type Service struct {
	repo        Repository
	logger      logger.Logger
	metrics     *metrics.Metrics
	handlers    map[domain.JobKind]Handler
	maxAttempts int
}

// NewService creates a queue service. maxAttempts applies to jobs enqueued
// through this service.
func NewService(repo Repository, maxAttempts int, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:        repo,
		logger:      log,
		metrics:     m,
		handlers:    make(map[domain.JobKind]Handler),
		maxAttempts: maxAttempts,
	}
}

// RegisterHandler binds a job kind to its handler. Must be called before the
// worker starts.
func (s *Service) RegisterHandler(kind domain.JobKind, h Handler) {
	s.handlers[kind] = h
}

// EnqueueIndex enqueues an IndexEntity job for the entity. Rapid successive
// mutations collapse into one outstanding job via the dedupe key.
func (s *Service) EnqueueIndex(ctx context.Context, entityID string) (bool, error) {
	return s.enqueue(ctx, domain.JobIndexEntity, entityID)
}

// EnqueueRemove enqueues a RemoveEntity job for the entity.
func (s *Service) EnqueueRemove(ctx context.Context, entityID string) (bool, error) {
	return s.enqueue(ctx, domain.JobRemoveEntity, entityID)
}

// EnqueueReindexAll enqueues a full reindex job.
func (s *Service) EnqueueReindexAll(ctx context.Context) (bool, error) {
	return s.enqueue(ctx, domain.JobReindexAll, "")
}

func (s *Service) enqueue(ctx context.Context, kind domain.JobKind, entityID string) (bool, error) {
	job, err := domain.NewIndexJob(kind, entityID)
	if err != nil {
		return false, err
	}
	job.MaxAttempts = s.maxAttempts

	created, err := s.repo.Enqueue(ctx, job)
	if err != nil {
		return false, err
	}

	outcome := "created"
	if !created {
		outcome = "deduplicated"
	}
	s.metrics.JobsEnqueuedTotal.WithLabelValues(string(kind), outcome).Inc()
	s.logger.Debug("job enqueued",
		logger.String("kind", string(kind)),
		logger.String("dedupe_key", job.DedupeKey),
		logger.String("outcome", outcome))
	return created, nil
}

// Stats returns queue statistics for operational inspection.
func (s *Service) Stats(ctx context.Context) (*domain.JobStats, error) {
	return s.repo.Stats(ctx)
}

// ListFailed returns parked failed jobs for operational inspection.
func (s *Service) ListFailed(ctx context.Context, limit int) ([]domain.IndexJob, error) {
	return s.repo.ListFailed(ctx, limit)
}
