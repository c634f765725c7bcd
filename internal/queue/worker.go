package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
	defaultWorkers      = 4

	staleRunningAge    = 5 * time.Minute
	recoveryInterval   = time.Minute
	cleanupInterval    = time.Hour
	doneJobRetention   = 7 * 24 * time.Hour
	failedJobRetention = 30 * 24 * time.Hour
)

// WorkerConfig holds the worker pool settings.
type WorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	BatchSize    int
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:      defaultWorkers,
		PollInterval: defaultPollInterval,
		BatchSize:    defaultBatchSize,
	}
}

// Worker polls the job queue and dispatches claimed jobs to the service's
// handlers with bounded concurrency. Two jobs for the same entity may run
// concurrently; handlers re-read authoritative state and upsert
// idempotently, so the result converges at the store layer without
// job-level locks.
type Worker struct {
	service *Service
	logger  logger.Logger
	tracer  trace.Tracer

	workers      int
	pollInterval time.Duration
	batchSize    int

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewWorker creates a worker pool over the queue service.
func NewWorker(service *Service, cfg WorkerConfig, log logger.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Worker{
		service:      service,
		logger:       log,
		tracer:       otel.Tracer("index-worker"),
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling, recovery, and maintenance loops.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.wg.Add(1)
	go w.runRecovery(ctx)

	w.wg.Add(1)
	go w.runMaintenance(ctx)

	w.logger.Info("index job worker started",
		logger.Int("workers", w.workers),
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize))
}

// Stop gracefully stops the worker and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("index job worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.processOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.processOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	jobs, err := w.service.repo.Claim(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to claim jobs", logger.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("processing claimed jobs", logger.Int("count", len(jobs)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i := range jobs {
		job := &jobs[i]
		g.Go(func() error {
			w.execute(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) execute(ctx context.Context, job *domain.IndexJob) {
	ctx, span := w.tracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.kind", string(job.Kind)),
			attribute.Int("job.attempt", job.Attempt),
		))
	defer span.End()

	handler, ok := w.service.handlers[job.Kind]
	if !ok {
		w.failJob(ctx, job, fmt.Errorf("no handler registered for kind %q", job.Kind))
		return
	}

	start := time.Now()
	err := handler(ctx, job)
	w.service.metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		w.failJob(ctx, job, err)
		return
	}

	if markErr := w.service.repo.MarkDone(ctx, job.ID); markErr != nil {
		w.logger.Error("failed to mark job done",
			logger.String("job_id", job.ID),
			logger.Error(markErr))
		return
	}
	w.service.metrics.JobsProcessedTotal.WithLabelValues(string(job.Kind), "done").Inc()
	w.logger.Debug("job completed",
		logger.String("job_id", job.ID),
		logger.String("kind", string(job.Kind)),
		logger.Int("attempt", job.Attempt))
}

func (w *Worker) failJob(ctx context.Context, job *domain.IndexJob, err error) {
	// MarkFailed below records the attempt, so the job is exhausted once
	// this failure is its last allowed one.
	job.Attempt++
	status := "retry"
	if job.IsExhausted() {
		status = "failed"
	}
	w.service.metrics.JobsProcessedTotal.WithLabelValues(string(job.Kind), status).Inc()

	w.logger.Error("job execution failed",
		logger.String("job_id", job.ID),
		logger.String("kind", string(job.Kind)),
		logger.Int("attempt", job.Attempt),
		logger.String("status", status),
		logger.Error(err))

	if markErr := w.service.repo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
		w.logger.Error("failed to mark job failed",
			logger.String("job_id", job.ID),
			logger.Error(markErr))
	}
}

// runRecovery resets stale running jobs back to pending. This recovers jobs
// claimed by a worker that crashed before finishing.
func (w *Worker) runRecovery(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(recoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reset, err := w.service.repo.ResetStale(ctx, staleRunningAge)
			if err != nil {
				w.logger.Error("job recovery failed", logger.Error(err))
			} else if reset > 0 {
				w.logger.Warn("recovered stale running jobs", logger.Int64("reset", reset))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runMaintenance prunes old done jobs and exhausted failed jobs past their
// inspection retention.
func (w *Worker) runMaintenance(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := w.service.repo.Cleanup(ctx, doneJobRetention, failedJobRetention)
			if err != nil {
				w.logger.Error("job cleanup failed", logger.Error(err))
			} else if deleted > 0 {
				w.logger.Info("cleaned up old jobs", logger.Int64("deleted", deleted))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
