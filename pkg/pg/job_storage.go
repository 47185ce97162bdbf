package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekit/storekit/pkg/queue"
)

// JobStorage implements the queue repositories on PostgreSQL. Claiming
// uses FOR UPDATE SKIP LOCKED, so any number of worker processes can poll
// the same queue and each ready job goes to exactly one of them.
//
// Unlike the in-memory storage there is no background janitor; run
// RecoverExpiredLeases and PurgeTerminal periodically, typically as jobs
// on a maintenance queue or a cron sidecar.
type JobStorage struct {
	pool *pgxpool.Pool
}

// NewJobStorage creates a Postgres-backed job storage.
func NewJobStorage(pool *pgxpool.Pool) *JobStorage {
	return &JobStorage{pool: pool}
}

// CreateJob implements queue.EnqueuerRepository.
func (s *JobStorage) CreateJob(ctx context.Context, job *queue.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, queue, name, payload, status, attempts, max_attempts, scheduled_at, created_at, backoff_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Queue, job.Name, job.Payload, string(job.Status),
		job.Attempts, job.MaxAttempts, job.ScheduledAt, job.CreatedAt, durationsToMillis(job.Backoff))
	return err
}

// ClaimJob implements queue.WorkerRepository. SKIP LOCKED makes racing
// claimants pass over each other's locked rows instead of blocking, so a
// slow claim never stalls the rest of the pool.
func (s *JobStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queueName string, lease time.Duration) (*queue.Job, error) {
	leaseExpiry := time.Now().Add(lease)

	job, err := scanJob(s.pool.QueryRow(ctx, `
		WITH ready AS (
			SELECT id FROM jobs
			WHERE queue = $1
			  AND status IN ('pending', 'retrying')
			  AND scheduled_at <= now()
			ORDER BY scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs j
		SET status = 'running', attempts = j.attempts + 1, leased_by = $2, lease_expiry = $3
		FROM ready
		WHERE j.id = ready.id
		RETURNING `+jobColumns("j"),
		queueName, workerID, leaseExpiry))
	if IsNotFoundError(err) {
		return nil, queue.ErrNoJobToClaim
	}
	return job, err
}

// CompleteJob implements queue.WorkerRepository.
func (s *JobStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return s.updateRunning(ctx, `
		UPDATE jobs
		SET status = 'completed', completed_at = now(), lease_expiry = NULL, leased_by = NULL
		WHERE id = $1 AND status = 'running'`, jobID)
}

// RetryJob implements queue.WorkerRepository. The status CASE mirrors the
// retry rule: a job out of attempts fails terminally, otherwise it waits
// for its next run.
func (s *JobStorage) RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error {
	return s.updateRunning(ctx, `
		UPDATE jobs
		SET last_error   = $2,
		    lease_expiry = NULL,
		    leased_by    = NULL,
		    status       = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'retrying' END,
		    completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
		    scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at ELSE $3 END
		WHERE id = $1 AND status = 'running'`, jobID, errMsg, nextRunAt)
}

// FailJob implements queue.WorkerRepository.
func (s *JobStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	return s.updateRunning(ctx, `
		UPDATE jobs
		SET status = 'failed', last_error = $2, completed_at = now(), lease_expiry = NULL, leased_by = NULL
		WHERE id = $1 AND status = 'running'`, jobID, errMsg)
}

// ExtendLease implements queue.WorkerRepository.
func (s *JobStorage) ExtendLease(ctx context.Context, jobID uuid.UUID, d time.Duration) error {
	return s.updateRunning(ctx, `
		UPDATE jobs
		SET lease_expiry = $2
		WHERE id = $1 AND status = 'running'`, jobID, time.Now().Add(d))
}

// GetJob returns the stored job.
func (s *JobStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*queue.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns("jobs")+` FROM jobs WHERE id = $1`, jobID))
	if IsNotFoundError(err) {
		return nil, queue.ErrJobNotFound
	}
	return job, err
}

// CancelJob cancels a pending or retrying job so it is never executed. A
// running job keeps its current attempt; cancellation only prevents future
// claims.
func (s *JobStorage) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'cancelled', completed_at = now()
		WHERE id = $1 AND status IN ('pending', 'retrying')`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.explainMiss(ctx, jobID, queue.ErrJobNotCancellable)
	}
	return nil
}

// ReplayJob resets a failed job for a fresh round of attempts, keeping the
// last error for the audit trail.
func (s *JobStorage) ReplayJob(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', attempts = 0, scheduled_at = now(), completed_at = NULL
		WHERE id = $1 AND status = 'failed'`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.explainMiss(ctx, jobID, queue.ErrJobNotReplayable)
	}
	return nil
}

// ListJobs returns jobs in the queue with the given status, oldest first,
// up to limit (0 means no limit). An empty queue name matches all queues.
func (s *JobStorage) ListJobs(ctx context.Context, queueName string, status queue.JobStatus, limit int) ([]queue.Job, error) {
	query := `SELECT ` + jobColumns("jobs") + `
		FROM jobs
		WHERE status = $1 AND ($2 = '' OR queue = $2)
		ORDER BY created_at`
	args := []any{string(status), queueName}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// RecoverExpiredLeases returns jobs whose worker died mid-execution to the
// queue. The attempt spent on the expired claim is kept; a job with no
// attempts left fails instead of being reclaimed forever.
func (s *JobStorage) RecoverExpiredLeases(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET lease_expiry = NULL,
		    leased_by    = NULL,
		    status       = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'retrying' END,
		    completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
		    last_error   = CASE WHEN attempts >= max_attempts THEN 'lease expired after final attempt' ELSE last_error END,
		    scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at ELSE now() END
		WHERE status = 'running' AND lease_expiry <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// PurgeTerminal deletes completed, failed and cancelled jobs older than
// the retention window.
func (s *JobStorage) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND completed_at <= $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *JobStorage) updateRunning(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		jobID := args[0].(uuid.UUID)
		return s.explainMiss(ctx, jobID, fmt.Errorf("job %s is not running", jobID))
	}
	return nil
}

// explainMiss distinguishes "job does not exist" from "job is in the wrong
// status" after a conditional update matched nothing.
func (s *JobStorage) explainMiss(ctx context.Context, jobID uuid.UUID, statusErr error) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return queue.ErrJobNotFound
	}
	return statusErr
}

func jobColumns(alias string) string {
	return alias + `.id, ` + alias + `.queue, ` + alias + `.name, ` + alias + `.payload, ` +
		alias + `.status, ` + alias + `.attempts, ` + alias + `.max_attempts, ` + alias + `.scheduled_at, ` +
		alias + `.lease_expiry, ` + alias + `.leased_by, ` + alias + `.last_error, ` + alias + `.completed_at, ` +
		alias + `.created_at, ` + alias + `.backoff_ms`
}

func scanJob(row pgx.Row) (*queue.Job, error) {
	var (
		job       queue.Job
		status    string
		backoffMS []int64
	)
	if err := row.Scan(&job.ID, &job.Queue, &job.Name, &job.Payload, &status, &job.Attempts,
		&job.MaxAttempts, &job.ScheduledAt, &job.LeaseExpiry, &job.LeasedBy, &job.LastError,
		&job.CompletedAt, &job.CreatedAt, &backoffMS); err != nil {
		return nil, err
	}
	job.Status = queue.JobStatus(status)
	job.Backoff = millisToDurations(backoffMS)
	return &job, nil
}

func durationsToMillis(ds []time.Duration) []int64 {
	out := make([]int64, len(ds))
	for i, d := range ds {
		out[i] = d.Milliseconds()
	}
	return out
}

func millisToDurations(ms []int64) []time.Duration {
	if len(ms) == 0 {
		return nil
	}
	out := make([]time.Duration, len(ms))
	for i, m := range ms {
		out[i] = time.Duration(m) * time.Millisecond
	}
	return out
}
