package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/northmedia/searchsync/internal/domain"
)

// jobSelectList is the column list for SELECT/RETURNING on index_jobs.
const jobSelectList = `id, kind, entity_id, dedupe_key, status, attempt,
	max_attempts, error_message, created_at, updated_at, next_retry_at`

// JobRepository manages the persistent index job queue in PostgreSQL.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a pending job. A job sharing its dedupe key with an
// already pending job conflicts with the partial unique index and is dropped;
// Enqueue reports whether a row was actually created. Running jobs do not
// block the insert: they may have read state older than the mutation that
// triggered this enqueue, so a fresh pending job is required to converge.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.IndexJob) (bool, error) {
	query := `
		INSERT INTO index_jobs (kind, entity_id, dedupe_key, max_attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dedupe_key) WHERE status = 'pending' DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, job.Kind, job.EntityID, job.DedupeKey, job.MaxAttempts)
	if err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get affected rows: %w", err)
	}
	return rows == 1, nil
}

// Claim marks up to limit runnable jobs as running and returns them. Pending
// jobs and failed jobs whose backoff has elapsed are both runnable. FOR
// UPDATE SKIP LOCKED keeps concurrent workers from claiming the same row.
func (r *JobRepository) Claim(ctx context.Context, limit int) ([]domain.IndexJob, error) {
	query := `
		UPDATE index_jobs
		SET status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM index_jobs
			WHERE (status = 'pending')
			   OR (status = 'failed'
				AND attempt < max_attempts
				AND (next_retry_at IS NULL OR next_retry_at <= NOW()))
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectList

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row
// was affected.
func (r *JobRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkDone marks a job as completed.
func (r *JobRepository) MarkDone(ctx context.Context, id string) error {
	query := `
		UPDATE index_jobs
		SET status = 'done', finished_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt with exponential backoff scheduling:
// 1min, 2min, 4min, 8min, 16min. Once attempts are exhausted the job stays
// failed with next_retry_at in place, parked for inspection.
func (r *JobRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	query := `
		UPDATE index_jobs
		SET status = 'failed',
		    error_message = $2,
		    attempt = attempt + 1,
		    next_retry_at = NOW() + (INTERVAL '1 minute' * POWER(2, attempt)),
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, errorMsg); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetStale returns stale running jobs to pending. This recovers jobs whose
// worker crashed after claiming them.
func (r *JobRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE index_jobs
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'running'
		  AND updated_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	return result.RowsAffected()
}

// Cleanup removes completed jobs older than doneRetention and exhausted
// failed jobs older than failedRetention. Failed jobs are retained longer so
// operators can inspect them.
func (r *JobRepository) Cleanup(ctx context.Context, doneRetention, failedRetention time.Duration) (int64, error) {
	query := `
		DELETE FROM index_jobs
		WHERE (status = 'done' AND finished_at < NOW() - $1::interval)
		   OR (status = 'failed' AND attempt >= max_attempts AND updated_at < NOW() - $2::interval)`

	result, err := r.db.ExecContext(ctx, query, doneRetention.String(), failedRetention.String())
	if err != nil {
		return 0, fmt.Errorf("cleanup jobs: %w", err)
	}
	return result.RowsAffected()
}

// Stats returns queue statistics for operational inspection.
func (r *JobRepository) Stats(ctx context.Context) (*domain.JobStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COUNT(*) FILTER (WHERE status = 'done') AS done,
			COUNT(*) FILTER (WHERE status = 'failed' AND attempt < max_attempts) AS failed_retryable,
			COUNT(*) FILTER (WHERE status = 'failed' AND attempt >= max_attempts) AS failed_exhausted,
			COALESCE(AVG(EXTRACT(EPOCH FROM (started_at - created_at)))
				FILTER (WHERE status = 'done' AND finished_at > NOW() - INTERVAL '1 hour'), 0) AS avg_run_lag_seconds
		FROM index_jobs`

	var stats domain.JobStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending,
		&stats.Running,
		&stats.Done,
		&stats.FailedRetryable,
		&stats.FailedExhausted,
		&stats.AvgRunLagSecs,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &stats, nil
}

// ListFailed returns exhausted failed jobs, newest first.
func (r *JobRepository) ListFailed(ctx context.Context, limit int) ([]domain.IndexJob, error) {
	query := `SELECT ` + jobSelectList + `
		FROM index_jobs
		WHERE status = 'failed' AND attempt >= max_attempts
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// scanJobs always returns a non-nil slice so an empty result renders as a
// JSON array, not null.
func scanJobs(rows *sql.Rows) ([]domain.IndexJob, error) {
	jobs := []domain.IndexJob{}
	for rows.Next() {
		var j domain.IndexJob
		err := rows.Scan(
			&j.ID, &j.Kind, &j.EntityID, &j.DedupeKey, &j.Status, &j.Attempt,
			&j.MaxAttempts, &j.Error, &j.CreatedAt, &j.UpdatedAt, &j.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
