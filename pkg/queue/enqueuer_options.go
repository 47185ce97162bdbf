package queue

import "time"

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue    string
	defaultAttempts int
}

// WithDefaultQueue sets the queue used when Enqueue receives no WithQueue option
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// WithDefaultMaxAttempts sets the default attempt budget for new jobs
func WithDefaultMaxAttempts(n int) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if n >= 1 && n <= 20 {
			o.defaultAttempts = n
		}
	}
}

// EnqueueOption is a functional option for a single Enqueue call
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	maxAttempts int
	delay       time.Duration
	scheduledAt *time.Time
	jobName     string
	backoff     []time.Duration
}

// WithQueue routes the job to a specific queue
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithMaxAttempts sets how many executions the job is allowed before it is
// marked failed. Capped at 20 to prevent unbounded retry loops.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxAttempts = n
	}
}

// WithDelay defers the first attempt by the given duration
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithScheduledAt sets an absolute time for the first attempt
func WithScheduledAt(at time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &at
	}
}

// WithJobName overrides the payload-derived job name. Required when the
// handler is registered under a contract name such as "send-order-confirmation".
func WithJobName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.jobName = name
		}
	}
}

// WithBackoffSchedule pins the job to an explicit retry schedule instead of
// the worker's per-queue strategy. The n-th failed attempt waits delays[n-1];
// the last entry repeats.
func WithBackoffSchedule(delays ...time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if len(delays) > 0 {
			o.backoff = delays
		}
	}
}
