package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when a job is enqueued without an explicit queue.
const DefaultQueueName = "default"

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	// JobStatusPending means the job is waiting for its first claim.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning means a worker holds a lease on the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusRetrying means a failed attempt was recorded and the job is
	// scheduled for another claim after its backoff delay.
	JobStatusRetrying JobStatus = "retrying"
	// JobStatusCompleted means the handler reported success.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed means the job exhausted its attempts or hit a fatal
	// error. Failed jobs stay durable and inspectable until purged.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled means the job was cancelled before execution.
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are never
// claimed again; they are retained for the configured window, then purged.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Claimable reports whether a job in this status may be claimed by a worker,
// subject to its scheduled-at time.
func (s JobStatus) Claimable() bool {
	return s == JobStatusPending || s == JobStatusRetrying
}

// Job is a durable unit of deferred work. Job records are owned by the
// storage layer; workers and enqueuers only hold transient copies.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	Name        string     `json:"name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LeaseExpiry *time.Time `json:"lease_expiry,omitempty"`
	LeasedBy    *uuid.UUID `json:"leased_by,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Backoff, when non-empty, overrides the worker's per-queue strategy:
	// the n-th failed attempt waits Backoff[n-1], with the last element
	// reused for any further attempts.
	Backoff []time.Duration `json:"backoff,omitempty"`
}

// NextDelay returns the wait before the job's next attempt, preferring the
// job's explicit backoff schedule over the supplied strategy. attempt is
// the number of executions that have already failed (1-indexed).
func (j *Job) NextDelay(attempt int, fallback Strategy) time.Duration {
	if len(j.Backoff) > 0 {
		idx := attempt - 1
		if idx >= len(j.Backoff) {
			idx = len(j.Backoff) - 1
		}
		if idx < 0 {
			idx = 0
		}
		return j.Backoff[idx]
	}
	if fallback == nil {
		fallback = DefaultStrategy()
	}
	return fallback.Delay(attempt)
}
