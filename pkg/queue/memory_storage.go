package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the queue repositories in memory for testing and
// local development. A background janitor recovers jobs whose lease expired
// (crashed worker) and purges terminal jobs past the retention window.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	retention time.Duration

	ticker *time.Ticker
	done   chan struct{}
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithRetention sets how long terminal jobs are kept before the janitor
// purges them. Zero disables automatic purging.
func WithRetention(d time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		ms.retention = d
	}
}

// NewMemoryStorage creates an in-memory job storage.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		jobs: make(map[uuid.UUID]*Job),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	ms.ticker = time.NewTicker(time.Second)
	go ms.janitor()

	return ms
}

// Close stops the background janitor.
func (ms *MemoryStorage) Close() error {
	close(ms.done)
	ms.ticker.Stop()
	return nil
}

// CreateJob implements EnqueuerRepository.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy
	return nil
}

// ClaimJob implements WorkerRepository. The oldest ready job in the queue
// wins; claiming marks it running and spends one attempt.
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queue string, lease time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job
	for _, job := range ms.jobs {
		if job.Queue != queue || !job.Status.Claimable() {
			continue
		}
		if job.ScheduledAt.After(now) {
			continue
		}
		if best == nil || job.ScheduledAt.Before(best.ScheduledAt) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	leaseExpiry := now.Add(lease)
	best.Status = JobStatusRunning
	best.Attempts++
	best.LeaseExpiry = &leaseExpiry
	best.LeasedBy = &workerID

	jobCopy := *best
	return &jobCopy, nil
}

// CompleteJob implements WorkerRepository.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.running(jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.LeaseExpiry = nil
	job.LeasedBy = nil
	return nil
}

// RetryJob implements WorkerRepository. The job becomes claimable again at
// nextRunAt unless its attempt budget is spent, in which case it fails.
func (ms *MemoryStorage) RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.running(jobID)
	if err != nil {
		return err
	}

	job.LastError = &errMsg
	job.LeaseExpiry = nil
	job.LeasedBy = nil

	if job.Attempts >= job.MaxAttempts {
		now := time.Now()
		job.Status = JobStatusFailed
		job.CompletedAt = &now
	} else {
		job.Status = JobStatusRetrying
		job.ScheduledAt = nextRunAt
	}
	return nil
}

// FailJob implements WorkerRepository. Terminal failure, no further claims.
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.running(jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = JobStatusFailed
	job.LastError = &errMsg
	job.CompletedAt = &now
	job.LeaseExpiry = nil
	job.LeasedBy = nil
	return nil
}

// ExtendLease implements WorkerRepository.
func (ms *MemoryStorage) ExtendLease(ctx context.Context, jobID uuid.UUID, d time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, err := ms.running(jobID)
	if err != nil {
		return err
	}

	leaseExpiry := time.Now().Add(d)
	job.LeaseExpiry = &leaseExpiry
	return nil
}

// GetJob returns a copy of the job.
func (ms *MemoryStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}
	jobCopy := *job
	return &jobCopy, nil
}

// CancelJob cancels a pending or retrying job so it is never executed.
// A running job cannot be cancelled mid-execution; cancellation only
// prevents future attempts.
func (ms *MemoryStorage) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if !job.Status.Claimable() {
		return ErrJobNotCancellable
	}

	now := time.Now()
	job.Status = JobStatusCancelled
	job.CompletedAt = &now
	return nil
}

// ReplayJob resets a failed job for a fresh round of attempts. The last
// error is kept for the audit trail.
func (ms *MemoryStorage) ReplayJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Status != JobStatusFailed {
		return ErrJobNotReplayable
	}

	job.Status = JobStatusPending
	job.Attempts = 0
	job.ScheduledAt = time.Now()
	job.CompletedAt = nil
	return nil
}

// ListJobs returns copies of jobs in the queue with the given status,
// oldest first, up to limit (0 means no limit). An empty queue name
// matches all queues.
func (ms *MemoryStorage) ListJobs(ctx context.Context, queue string, status JobStatus, limit int) ([]Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Job
	for _, job := range ms.jobs {
		if queue != "" && job.Queue != queue {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, *job)
	}

	slices.SortFunc(out, func(a, b Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PurgeTerminal removes terminal jobs that finished more than olderThan ago
// and returns how many were removed.
func (ms *MemoryStorage) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.purgeLocked(olderThan), nil
}

func (ms *MemoryStorage) purgeLocked(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	purged := 0
	for id, job := range ms.jobs {
		if !job.Status.Terminal() {
			continue
		}
		finished := job.CreatedAt
		if job.CompletedAt != nil {
			finished = *job.CompletedAt
		}
		if finished.Before(cutoff) {
			delete(ms.jobs, id)
			purged++
		}
	}
	return purged
}

func (ms *MemoryStorage) running(jobID uuid.UUID) (*Job, error) {
	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, ErrJobNotFound
	}
	if job.Status != JobStatusRunning {
		return nil, fmt.Errorf("job %s is not running", jobID)
	}
	return job, nil
}

// janitor periodically recovers expired leases and purges old terminal jobs.
func (ms *MemoryStorage) janitor() {
	for {
		select {
		case <-ms.ticker.C:
			ms.expireLeases()
			if ms.retention > 0 {
				ms.mu.Lock()
				ms.purgeLocked(ms.retention)
				ms.mu.Unlock()
			}
		case <-ms.done:
			return
		}
	}
}

// expireLeases makes jobs claimed by dead workers claimable again. The
// attempt already spent on the expired claim is kept, so a job that ran out
// of attempts moves to failed instead of being reclaimed.
func (ms *MemoryStorage) expireLeases() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, job := range ms.jobs {
		if job.Status != JobStatusRunning {
			continue
		}
		if job.LeaseExpiry == nil || job.LeaseExpiry.After(now) {
			continue
		}

		job.LeaseExpiry = nil
		job.LeasedBy = nil

		if job.Attempts >= job.MaxAttempts {
			errMsg := "lease expired after final attempt"
			job.Status = JobStatusFailed
			job.LastError = &errMsg
			job.CompletedAt = &now
		} else {
			job.Status = JobStatusRetrying
			job.ScheduledAt = now
		}
	}
}
