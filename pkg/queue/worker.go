package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the storage operations needed to execute jobs.
type WorkerRepository interface {
	// ClaimJob atomically claims the next ready job in the queue, marking it
	// running, incrementing its attempt count, and holding a lease until
	// now+lease. Exactly one claimant wins even with concurrent workers.
	// Returns ErrNoJobToClaim when nothing is ready.
	ClaimJob(ctx context.Context, workerID uuid.UUID, queue string, lease time.Duration) (*Job, error)

	// CompleteJob marks a running job completed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// RetryJob records a failed attempt. The job becomes retrying and
	// claimable at nextRunAt, or failed once its attempt budget is spent.
	RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error

	// FailJob marks a running job failed immediately, skipping any
	// remaining attempts. Used for fatal, non-retryable errors.
	FailJob(ctx context.Context, jobID uuid.UUID, errMsg string) error

	// ExtendLease pushes out the lease expiry of a running job.
	ExtendLease(ctx context.Context, jobID uuid.UUID, d time.Duration) error
}

// queueRuntime is the per-queue execution state: a semaphore bounding
// concurrent jobs and the retry strategy for jobs without an explicit
// backoff schedule.
type queueRuntime struct {
	name    string
	sem     chan struct{}
	backoff Strategy
}

// Worker continuously claims jobs from its configured queues and executes
// the registered handler for each job's name. Concurrency is bounded per
// queue so a slow downstream (e.g. a rate-limited payment gateway) only
// backs up its own queue.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []*queueRuntime
	workerID uuid.UUID
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex

	pollInterval  time.Duration
	leaseDuration time.Duration
	logger        *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a worker. By default it serves the default queue with
// one concurrent job, polling every 5 seconds with a 5 minute lease.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pollInterval:       5 * time.Second,
		leaseDuration:      5 * time.Minute,
		defaultConcurrency: 1,
		defaultBackoff:     DefaultStrategy(),
		queueConcurrency:   make(map[string]int),
		queueBackoff:       make(map[string]Strategy),
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	queues := make([]*queueRuntime, 0, len(options.queues))
	for _, name := range options.queues {
		limit := options.defaultConcurrency
		if n, ok := options.queueConcurrency[name]; ok {
			limit = n
		}
		strategy := options.defaultBackoff
		if s, ok := options.queueBackoff[name]; ok {
			strategy = s
		}
		queues = append(queues, &queueRuntime{
			name:    name,
			sem:     make(chan struct{}, limit),
			backoff: strategy,
		})
	}

	return &Worker{
		repo:          repo,
		handlers:      make(map[string]Handler),
		queues:        queues,
		workerID:      uuid.New(),
		pollInterval:  options.pollInterval,
		leaseDuration: options.leaseDuration,
		logger:        options.logger,
	}, nil
}

// RegisterHandler registers a job handler. The last registration for a
// given name wins.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple job handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins claiming and processing jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	queueNames := make([]string, len(w.queues))
	for i, q := range w.queues {
		queueNames[i] = q.name
	}
	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", queueNames))

	return nil
}

// Stop cancels the claim loop and waits for in-flight jobs to finish.
// Jobs already claimed run to completion; their leases keep them invisible
// to other workers meanwhile.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active jobs",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

// run is the main claim loop. Each tick it tries to fill a free slot on
// every configured queue.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for _, q := range w.queues {
				w.tryClaim(q)
			}
		}
	}
}

// tryClaim spawns one claim-and-process cycle for the queue if a
// concurrency slot is free. A busy queue skips the tick, which is the
// backpressure mechanism: claims stop while the queue is saturated.
func (w *Worker) tryClaim(q *queueRuntime) {
	select {
	case q.sem <- struct{}{}:
	default:
		return
	}

	// Don't add to the WaitGroup after Stop began waiting on it.
	w.stopMu.Lock()
	if w.stopping.Load() {
		w.stopMu.Unlock()
		<-q.sem
		return
	}
	w.wg.Add(1)
	w.stopMu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-q.sem }()

		if err := w.claimAndProcess(q); err != nil && !errors.Is(err, ErrHandlerNotFound) {
			w.logger.Error("failed to process job",
				slog.String("worker_id", w.workerID.String()),
				slog.String("queue", q.name),
				slog.String("error", err.Error()))
		}
	}()
}

func (w *Worker) claimAndProcess(q *queueRuntime) error {
	job, err := w.repo.ClaimJob(w.ctx, w.workerID, q.name, w.leaseDuration)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return nil
	}

	w.logger.Debug("claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.String("queue", job.Queue),
		slog.Int("attempt", job.Attempts))

	return w.processJob(q, job)
}

// processJob executes a claimed job and reports the outcome.
func (w *Worker) processJob(q *queueRuntime, job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("job_id", job.ID.String()),
				slog.String("job_name", job.Name),
				slog.Any("panic", r))
			_ = w.reportFailure(q, job, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Name]
	w.mu.RUnlock()

	if !ok {
		return w.reportMissingHandler(job)
	}

	// The execution context is detached from the worker lifecycle so that
	// graceful shutdown lets claimed jobs finish; the lease bounds runtime.
	ctx, cancel := context.WithTimeout(context.Background(), w.leaseDuration)
	defer cancel()

	err := handler.Handle(ctx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.reportFailure(q, job, err, duration)
	}
	return w.reportSuccess(job, duration)
}

// reportMissingHandler fails the job immediately: without a handler every
// retry would fail the same way. Operators can deploy the handler and
// replay the failed job.
func (w *Worker) reportMissingHandler(job *Job) error {
	w.logger.Error("no handler registered for job name",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name))

	ctx, cancel := w.reportContext()
	defer cancel()

	errMsg := "no handler registered for job name: " + job.Name
	if err := w.repo.FailJob(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
	}
	return ErrHandlerNotFound
}

// reportContext is detached from the worker lifecycle: a job that finishes
// while the worker is stopping must still be able to record its outcome.
func (w *Worker) reportContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// reportFailure applies the retry policy. Fatal errors skip remaining
// attempts: retrying cannot change the outcome without new information
// (a guard-vetoed transition being the canonical case).
func (w *Worker) reportFailure(q *queueRuntime, job *Job, execErr error, duration time.Duration) error {
	ctx, cancel := w.reportContext()
	defer cancel()

	if IsFatal(execErr) {
		w.logger.Error("job failed with non-retryable error",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_name", job.Name),
			slog.Int("attempt", job.Attempts),
			slog.Duration("duration", duration),
			slog.String("error", execErr.Error()))

		if err := w.repo.FailJob(ctx, job.ID, execErr.Error()); err != nil {
			return fmt.Errorf("failed to mark job %s as failed: %w", job.ID, err)
		}
		return nil
	}

	delay := job.NextDelay(job.Attempts, q.backoff)
	nextRunAt := time.Now().Add(delay)

	w.logger.Error("job attempt failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.Int("attempt", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Duration("duration", duration),
		slog.Duration("backoff", delay),
		slog.String("error", execErr.Error()))

	if err := w.repo.RetryJob(ctx, job.ID, execErr.Error(), nextRunAt); err != nil {
		return fmt.Errorf("failed to record attempt for job %s: %w", job.ID, err)
	}

	if job.Attempts >= job.MaxAttempts {
		w.logger.Warn("job exhausted its attempts",
			slog.String("worker_id", w.workerID.String()),
			slog.String("job_id", job.ID.String()),
			slog.String("job_name", job.Name),
			slog.Int("attempts", job.Attempts),
			slog.Bool("alert", true))
	}
	return nil
}

func (w *Worker) reportSuccess(job *Job, duration time.Duration) error {
	ctx, cancel := w.reportContext()
	defer cancel()

	if err := w.repo.CompleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job %s as completed: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_name", job.Name),
		slog.String("queue", job.Queue),
		slog.Int("attempts", job.Attempts),
		slog.Duration("duration", duration))

	return nil
}

// ExtendLeaseForJob pushes out a running job's lease. Call it periodically
// from handlers that may outlive the configured lease duration.
func (w *Worker) ExtendLeaseForJob(ctx context.Context, jobID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLease(ctx, jobID, extension)
}

// WorkerInfo returns identifying information about this worker process.
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
