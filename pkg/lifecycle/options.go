package lifecycle

import (
	"log/slog"
	"time"
)

type controllerOptions struct {
	jobs              JobEnqueuer
	logger            *slog.Logger
	guardTimeout      time.Duration
	enqueueAttempts   int
	enqueueRetryDelay time.Duration
}

// ControllerOption configures a Controller.
type ControllerOption func(*controllerOptions)

// WithJobEnqueuer wires the job queue in for post-commit hooks. Without it,
// hooks that enqueue jobs fail with ErrEnqueuerNotConfigured.
func WithJobEnqueuer(jobs JobEnqueuer) ControllerOption {
	return func(o *controllerOptions) {
		o.jobs = jobs
	}
}

// WithGuardTimeout bounds each guard's execution. A guard that overruns the
// timeout counts as a rejection. Default is 5 seconds.
func WithGuardTimeout(d time.Duration) ControllerOption {
	return func(o *controllerOptions) {
		if d > 0 {
			o.guardTimeout = d
		}
	}
}

// WithLogger sets the controller's structured logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(o *controllerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEnqueueRetries controls the bounded retry applied to hook enqueues
// before the failure is escalated through logging. Defaults: 3 attempts,
// 100ms apart.
func WithEnqueueRetries(attempts int, delay time.Duration) ControllerOption {
	return func(o *controllerOptions) {
		if attempts > 0 {
			o.enqueueAttempts = attempts
		}
		if delay > 0 {
			o.enqueueRetryDelay = delay
		}
	}
}
