package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/venuecrawl/internal/domain"
)

// ErrJobNotFound is returned when a job lookup matches no row, or when a
// finish call targets a job that is not running. Callers should check with
// errors.Is().
var ErrJobNotFound = errors.New("crawl job not found")

// hostExpr derives the lowercase host from venues.website in SQL: scheme and
// a leading www. are stripped, then everything after the first '/' or ':' is
// dropped. Must stay in sync with urlutil.HostOf.
const hostExpr = `lower(split_part(split_part(regexp_replace(v.website, '^https?://(www\.)?', ''), '/', 1), ':', 1))`

// JobRepository handles database operations for the crawl job queue.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// EnqueueParams contains the parameters for enqueueing a crawl job.
type EnqueueParams struct {
	PlaceID  string
	Mode     string
	Priority int
}

// Enqueue creates a pending job. If an identical pending job already exists
// for the same place and mode, its id is returned instead of inserting a
// duplicate.
func (r *JobRepository) Enqueue(ctx context.Context, params EnqueueParams) (int64, error) {
	if params.PlaceID == "" {
		return 0, fmt.Errorf("enqueue called without place id")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	jobID, err := enqueueOne(ctx, tx, params)
	if err != nil {
		return 0, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, fmt.Errorf("failed to commit enqueue transaction: %w", commitErr)
	}
	return jobID, nil
}

// EnqueueMany bulk-enqueues jobs in one transaction. Existing pending
// duplicates are reused, mirroring Enqueue.
func (r *JobRepository) EnqueueMany(ctx context.Context, items []EnqueueParams) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin enqueue transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	jobIDs := make([]int64, 0, len(items))
	for _, item := range items {
		jobID, enqueueErr := enqueueOne(ctx, tx, item)
		if enqueueErr != nil {
			return nil, enqueueErr
		}
		jobIDs = append(jobIDs, jobID)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit enqueue transaction: %w", commitErr)
	}
	return jobIDs, nil
}

// enqueueOne finds or inserts one pending job within a transaction.
func enqueueOne(ctx context.Context, tx *sqlx.Tx, params EnqueueParams) (int64, error) {
	if params.PlaceID == "" {
		return 0, fmt.Errorf("enqueue called without place id")
	}

	var jobID int64
	err := tx.GetContext(ctx, &jobID, `
		SELECT job_id
		FROM crawl_jobs
		WHERE place_id = $1 AND mode = $2 AND state = 'pending'
		ORDER BY priority DESC, job_id ASC
		LIMIT 1
	`, params.PlaceID, params.Mode)
	if err == nil {
		return jobID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up pending job: %w", err)
	}

	err = tx.GetContext(ctx, &jobID, `
		INSERT INTO crawl_jobs (place_id, mode, priority, state)
		VALUES ($1, $2, $3, 'pending')
		RETURNING job_id
	`, params.PlaceID, params.Mode, params.Priority)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}
	return jobID, nil
}

// claimQuery atomically marks up to $2 eligible pending jobs as running,
// respecting the per-host cap ($1) by counting currently running jobs per
// host. Row locks are taken on the candidate set with SKIP LOCKED so that
// concurrent claimers never double-claim, and the UPDATE ranges exactly over
// the locked rows.
const claimQuery = `
	WITH pending AS (
		SELECT cj.job_id, cj.place_id, cj.mode, cj.priority, v.website,
		       ` + hostExpr + ` AS host
		FROM crawl_jobs cj
		LEFT JOIN venues v USING (place_id)
		WHERE cj.state = 'pending'
	),
	running_counts AS (
		SELECT ` + hostExpr + ` AS host, COUNT(*) AS running_now
		FROM crawl_jobs cj
		JOIN venues v USING (place_id)
		WHERE cj.state = 'running'
		GROUP BY 1
	),
	eligible AS (
		SELECT p.job_id
		FROM pending p
		LEFT JOIN running_counts r ON p.host = r.host
		WHERE p.host IS NULL OR COALESCE(r.running_now, 0) < $1
		ORDER BY p.priority DESC, p.job_id ASC
		LIMIT $2
	),
	locked AS (
		SELECT cj.job_id
		FROM crawl_jobs cj
		JOIN eligible e USING (job_id)
		FOR UPDATE OF cj SKIP LOCKED
	)
	UPDATE crawl_jobs cj
	SET state = 'running', started_at = NOW(), error = NULL
	FROM locked l
	JOIN pending p USING (job_id)
	WHERE cj.job_id = l.job_id
	RETURNING cj.job_id, cj.place_id, cj.mode, cj.priority, p.website, p.host, cj.started_at
`

// ClaimBatch claims up to limit pending jobs and marks them running,
// honoring the per-host concurrency cap. Venues without a website (host NULL)
// are always eligible; their jobs fail fast in the worker. Returns an empty
// slice when nothing is claimable.
func (r *JobRepository) ClaimBatch(ctx context.Context, limit, perHostCap int) ([]domain.JobClaim, error) {
	if perHostCap < 1 {
		perHostCap = 1
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var claims []domain.JobClaim
	if selectErr := tx.SelectContext(ctx, &claims, claimQuery, perHostCap, limit); selectErr != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", selectErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}
	return claims, nil
}

// FinishSuccess marks a running job as success and stamps finished_at.
// Returns ErrJobNotFound if the job is not currently running.
func (r *JobRepository) FinishSuccess(ctx context.Context, jobID int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET state = 'success', finished_at = NOW(), error = NULL
		WHERE job_id = $1 AND state = 'running'
	`, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job success: %w", err)
	}
	return execRequireRows(result, nil, ErrJobNotFound)
}

// FinishFail marks a running job as fail with a truncated error message.
// Returns ErrJobNotFound if the job is not currently running.
func (r *JobRepository) FinishFail(ctx context.Context, jobID int64, errMsg string) error {
	var errVal *string
	if trimmed := domain.TruncateError(errMsg); trimmed != "" {
		errVal = &trimmed
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET state = 'fail', finished_at = NOW(), error = $2
		WHERE job_id = $1 AND state = 'running'
	`, jobID, errVal)
	if err != nil {
		return fmt.Errorf("failed to mark job fail: %w", err)
	}
	return execRequireRows(result, nil, ErrJobNotFound)
}

// GetStatus returns the current state of a job.
func (r *JobRepository) GetStatus(ctx context.Context, jobID int64) (*domain.CrawlJob, error) {
	var job domain.CrawlJob
	err := r.db.GetContext(ctx, &job, `
		SELECT job_id, place_id, mode, priority, state, started_at, finished_at, error
		FROM crawl_jobs
		WHERE job_id = $1
	`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job status: %w", err)
	}
	return &job, nil
}

// Depth returns the queue depth by state for monitoring.
func (r *JobRepository) Depth(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT state, COUNT(*) AS n
		FROM crawl_jobs
		GROUP BY state
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue depth: %w", err)
	}
	defer rows.Close()

	depth := make(map[string]int64)
	for rows.Next() {
		var state string
		var n int64
		if scanErr := rows.Scan(&state, &n); scanErr != nil {
			return nil, fmt.Errorf("failed to scan queue depth row: %w", scanErr)
		}
		depth[state] = n
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to read queue depth rows: %w", rowsErr)
	}
	return depth, nil
}

// HasActiveJob reports whether a venue already has a pending or running job.
func (r *JobRepository) HasActiveJob(ctx context.Context, placeID string) (bool, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		FROM crawl_jobs
		WHERE place_id = $1 AND state IN ('pending', 'running')
	`, placeID)
	if err != nil {
		return false, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return n > 0, nil
}

// PruneStuck resets jobs stuck in running longer than threshold back to
// pending, so a crashed worker's claims become claimable again. Returns the
// number of jobs reset.
func (r *JobRepository) PruneStuck(ctx context.Context, threshold time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET state = 'pending', started_at = NULL, finished_at = NULL, error = 'reset_stuck'
		WHERE state = 'running' AND started_at < NOW() - ($1 * INTERVAL '1 second')
	`, int64(threshold.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to prune stuck jobs: %w", err)
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to count pruned jobs: %w", affectedErr)
	}
	return n, nil
}
