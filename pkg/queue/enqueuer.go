package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the storage operations needed to enqueue jobs.
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer creates durable jobs. It is the write path used by lifecycle
// post-commit hooks and any other producer.
type Enqueuer struct {
	repo            EnqueuerRepository
	defaultQueue    string
	defaultAttempts int
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:    DefaultQueueName,
		defaultAttempts: 3,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:            repo,
		defaultQueue:    options.defaultQueue,
		defaultAttempts: options.defaultAttempts,
	}, nil
}

// Enqueue stores a new job and returns its id. The payload is JSON-encoded;
// the job name defaults to the payload's qualified struct name so a matching
// typed handler picks it up without extra wiring.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:       e.defaultQueue,
		maxAttempts: e.defaultAttempts,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.maxAttempts < 1 || options.maxAttempts > 20 {
		return uuid.Nil, ErrInvalidMaxAttempts
	}

	job, err := e.buildJob(payload, options)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job %q in queue %q: %w", job.Name, job.Queue, err)
	}

	return job.ID, nil
}

func (e *Enqueuer) buildJob(payload any, options *enqueueOptions) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	name := options.jobName
	if name == "" {
		name = qualifiedStructName(payload)
	}

	now := time.Now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = scheduledAt.Add(options.delay)
	}

	return &Job{
		ID:          uuid.New(),
		Queue:       options.queue,
		Name:        name,
		Payload:     payloadBytes,
		Status:      JobStatusPending,
		Attempts:    0,
		MaxAttempts: options.maxAttempts,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		Backoff:     options.backoff,
	}, nil
}
