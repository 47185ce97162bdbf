package queue

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidMaxAttempts is returned when max attempts is out of range
	ErrInvalidMaxAttempts = errors.New("max attempts must be between 1 and 20")

	// ErrHandlerNotFound is returned when no handler is registered for a job
	ErrHandlerNotFound = errors.New("no handler registered for job name")

	// ErrNoHandlers is returned when a worker is started without handlers
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrNoJobToClaim is returned by ClaimJob when no job is ready
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrJobNotFound is returned when the job id is unknown to the storage
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCancellable is returned when cancelling a job that is running
	// or already terminal; cancellation only prevents future attempts
	ErrJobNotCancellable = errors.New("job cannot be cancelled in its current status")

	// ErrJobNotReplayable is returned when replaying a job that is not failed
	ErrJobNotReplayable = errors.New("only failed jobs can be replayed")
)

// FatalError marks a handler failure as non-retryable. The worker moves the
// job straight to failed instead of applying the retry policy. Use it when
// repeating the attempt cannot change the outcome, e.g. a transition request
// vetoed by a business-rule guard.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal job error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the worker treats the failure as terminal.
// A nil err returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var e *FatalError
	return errors.As(err, &e)
}
