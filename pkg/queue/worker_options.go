package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues             []string
	pollInterval       time.Duration
	leaseDuration      time.Duration
	defaultConcurrency int
	defaultBackoff     Strategy
	queueConcurrency   map[string]int
	queueBackoff       map[string]Strategy
	logger             *slog.Logger
}

// WithQueues sets which queues the worker claims from
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithConfig applies environment-derived worker settings. Explicit options
// given after it take precedence.
func WithConfig(cfg Config) WorkerOption {
	return func(o *workerOptions) {
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.LeaseDuration > 0 {
			o.leaseDuration = cfg.LeaseDuration
		}
		if cfg.Concurrency > 0 {
			o.defaultConcurrency = cfg.Concurrency
		}
	}
}

// WithPollInterval sets how often the worker checks its queues for ready jobs
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithLeaseDuration sets how long a claimed job stays invisible to other
// workers. It should exceed the expected handler runtime; expired leases
// make the job claimable again.
func WithLeaseDuration(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.leaseDuration = d
		}
	}
}

// WithConcurrency sets the default number of concurrent jobs per queue
func WithConcurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.defaultConcurrency = n
		}
	}
}

// WithQueueConcurrency bounds concurrent jobs for one queue, overriding the
// default. Useful to throttle queues that call rate-limited downstreams.
func WithQueueConcurrency(queue string, n int) WorkerOption {
	return func(o *workerOptions) {
		if queue != "" && n > 0 {
			o.queueConcurrency[queue] = n
		}
	}
}

// WithBackoffStrategy sets the default retry strategy for all queues
func WithBackoffStrategy(s Strategy) WorkerOption {
	return func(o *workerOptions) {
		if s != nil {
			o.defaultBackoff = s
		}
	}
}

// WithQueueBackoff sets the retry strategy for one queue, overriding the default
func WithQueueBackoff(queue string, s Strategy) WorkerOption {
	return func(o *workerOptions) {
		if queue != "" && s != nil {
			o.queueBackoff[queue] = s
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
