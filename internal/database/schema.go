package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// indexJobsSchema bootstraps the job queue table. The partial unique index
// on dedupe_key is what collapses duplicate pending work: an insert for a key
// that already has a pending job conflicts and is dropped. The index must not
// cover running rows: a mutation arriving while its job runs has to queue a
// fresh job, since the running one may have read pre-mutation state.
const indexJobsSchema = `
CREATE TABLE IF NOT EXISTS index_jobs (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	kind          TEXT        NOT NULL,
	entity_id     UUID,
	dedupe_key    TEXT        NOT NULL,
	status        TEXT        NOT NULL DEFAULT 'pending',
	attempt       INT         NOT NULL DEFAULT 0,
	max_attempts  INT         NOT NULL DEFAULT 5,
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ,
	next_retry_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS index_jobs_dedupe_pending
	ON index_jobs (dedupe_key)
	WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS index_jobs_status_retry
	ON index_jobs (status, next_retry_at);
`

// EnsureJobSchema creates the job queue objects if they do not exist. The
// content_items table is owned by the external CRUD service and is not
// created here.
func EnsureJobSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, indexJobsSchema); err != nil {
		return fmt.Errorf("ensure index_jobs schema: %w", err)
	}
	return nil
}
