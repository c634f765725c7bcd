package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northmedia/searchsync/internal/domain"
	"github.com/northmedia/searchsync/internal/logger"
	"github.com/northmedia/searchsync/internal/metrics"
)

type fakeRepo struct {
	mu       sync.Mutex
	enqueued []*domain.IndexJob
	created  bool
	claimed  []domain.IndexJob
	done     []string
	failed   map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{created: true, failed: map[string]string{}}
}

func (r *fakeRepo) Enqueue(_ context.Context, job *domain.IndexJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, job)
	return r.created, nil
}

func (r *fakeRepo) Claim(_ context.Context, _ int) ([]domain.IndexJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := r.claimed
	r.claimed = nil
	return jobs, nil
}

func (r *fakeRepo) MarkDone(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, id)
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = errorMsg
	return nil
}

func (r *fakeRepo) ResetStale(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) Cleanup(context.Context, time.Duration, time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) Stats(context.Context) (*domain.JobStats, error) {
	return &domain.JobStats{}, nil
}

func (r *fakeRepo) ListFailed(context.Context, int) ([]domain.IndexJob, error) {
	return nil, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, 5, logger.NewNopLogger(), metrics.New())
}

func claimedJob(id string, kind domain.JobKind, entityID string) domain.IndexJob {
	job, _ := domain.NewIndexJob(kind, entityID)
	job.ID = id
	job.Status = domain.JobStatusRunning
	return *job
}

func TestServiceEnqueueAppliesMaxAttempts(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	created, err := svc.EnqueueIndex(context.Background(), "entity-1")
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, repo.enqueued, 1)
	assert.Equal(t, 5, repo.enqueued[0].MaxAttempts)
	assert.Equal(t, "index:entity-1", repo.enqueued[0].DedupeKey)
}

// statusRepo models the queue table's dedupe contract: only a pending job
// with the same key absorbs an enqueue. Claiming a job releases its key.
type statusRepo struct {
	fakeRepo
	pending map[string]*domain.IndexJob
	nextID  int
}

func newStatusRepo() *statusRepo {
	return &statusRepo{
		fakeRepo: *newFakeRepo(),
		pending:  map[string]*domain.IndexJob{},
	}
}

func (r *statusRepo) Enqueue(_ context.Context, job *domain.IndexJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[job.DedupeKey]; exists {
		return false, nil
	}
	r.nextID++
	job.ID = fmt.Sprintf("job-%d", r.nextID)
	r.pending[job.DedupeKey] = job
	r.enqueued = append(r.enqueued, job)
	return true, nil
}

func (r *statusRepo) Claim(_ context.Context, limit int) ([]domain.IndexJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []domain.IndexJob
	for key, job := range r.pending {
		job.Status = domain.JobStatusRunning
		jobs = append(jobs, *job)
		delete(r.pending, key)
		if len(jobs) == limit {
			break
		}
	}
	return jobs, nil
}

// A mutation landing while the previous job for the same entity is already
// running must queue a fresh job. The running job may have read the store
// before the mutation committed, so absorbing the enqueue would leave the
// index permanently stale.
func TestServiceEnqueueDuringRunningJobNotDropped(t *testing.T) {
	repo := newStatusRepo()
	svc := NewService(repo, 5, logger.NewNopLogger(), metrics.New())
	ctx := context.Background()

	created, err := svc.EnqueueIndex(ctx, "entity-1")
	require.NoError(t, err)
	require.True(t, created)

	// A duplicate while the first job is still pending collapses.
	created, err = svc.EnqueueIndex(ctx, "entity-1")
	require.NoError(t, err)
	assert.False(t, created)

	claimed, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// The same entity while its job runs creates a new pending job.
	created, err = svc.EnqueueIndex(ctx, "entity-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, repo.enqueued, 2)
}

func TestServiceEnqueueReportsDeduplication(t *testing.T) {
	repo := newFakeRepo()
	repo.created = false
	svc := newTestService(repo)

	created, err := svc.EnqueueIndex(context.Background(), "entity-1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestProcessOnceMarksSuccessfulJobsDone(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	var handled []string
	svc.RegisterHandler(domain.JobIndexEntity, func(_ context.Context, job *domain.IndexJob) error {
		handled = append(handled, job.ID)
		return nil
	})

	repo.claimed = []domain.IndexJob{
		claimedJob("job-1", domain.JobIndexEntity, "e1"),
	}

	w := NewWorker(svc, WorkerConfig{Workers: 1}, logger.NewNopLogger())
	w.processOnce(context.Background())

	assert.Equal(t, []string{"job-1"}, handled)
	assert.Equal(t, []string{"job-1"}, repo.done)
	assert.Empty(t, repo.failed)
}

func TestProcessOnceMarksFailedJobs(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	svc.RegisterHandler(domain.JobIndexEntity, func(context.Context, *domain.IndexJob) error {
		return errors.New("index unavailable")
	})

	repo.claimed = []domain.IndexJob{
		claimedJob("job-1", domain.JobIndexEntity, "e1"),
	}

	w := NewWorker(svc, WorkerConfig{Workers: 1}, logger.NewNopLogger())
	w.processOnce(context.Background())

	assert.Empty(t, repo.done)
	assert.Equal(t, "index unavailable", repo.failed["job-1"])
}

func TestFailJobClassifiesExhaustion(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := NewWorker(svc, WorkerConfig{Workers: 1}, logger.NewNopLogger())
	ctx := context.Background()

	retryable := claimedJob("job-1", domain.JobIndexEntity, "e1")
	retryable.Attempt = 3
	w.failJob(ctx, &retryable, errors.New("index unavailable"))
	assert.False(t, retryable.IsExhausted())

	last := claimedJob("job-2", domain.JobIndexEntity, "e2")
	last.Attempt = 4
	w.failJob(ctx, &last, errors.New("index unavailable"))
	assert.True(t, last.IsExhausted())

	failedMetric := svc.metrics.JobsProcessedTotal.WithLabelValues(string(domain.JobIndexEntity), "failed")
	retryMetric := svc.metrics.JobsProcessedTotal.WithLabelValues(string(domain.JobIndexEntity), "retry")
	assert.Equal(t, 1.0, testutil.ToFloat64(failedMetric))
	assert.Equal(t, 1.0, testutil.ToFloat64(retryMetric))
}

func TestProcessOnceUnknownKindFails(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	repo.claimed = []domain.IndexJob{
		claimedJob("job-1", domain.JobReindexAll, ""),
	}

	w := NewWorker(svc, WorkerConfig{Workers: 1}, logger.NewNopLogger())
	w.processOnce(context.Background())

	assert.Contains(t, repo.failed["job-1"], "no handler registered")
}

func TestProcessOnceDispatchesBatchConcurrently(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	var mu sync.Mutex
	var handled []string
	svc.RegisterHandler(domain.JobIndexEntity, func(_ context.Context, job *domain.IndexJob) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, job.ID)
		return nil
	})

	repo.claimed = []domain.IndexJob{
		claimedJob("job-1", domain.JobIndexEntity, "e1"),
		claimedJob("job-2", domain.JobIndexEntity, "e2"),
		claimedJob("job-3", domain.JobIndexEntity, "e3"),
	}

	w := NewWorker(svc, WorkerConfig{Workers: 2}, logger.NewNopLogger())
	w.processOnce(context.Background())

	assert.Len(t, handled, 3)
	assert.Len(t, repo.done, 3)
}

func TestWorkerStartStop(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	w := NewWorker(svc, WorkerConfig{Workers: 1, PollInterval: 10 * time.Millisecond}, logger.NewNopLogger())
	w.Start(context.Background())
	// Second Start is a no-op, not a second set of loops.
	w.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
