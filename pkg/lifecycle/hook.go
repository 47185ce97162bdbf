package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/storekit/storekit/pkg/queue"
	"github.com/storekit/storekit/pkg/stategraph"
)

// JobEnqueuer is the slice of the job queue that hooks need. Satisfied by
// *queue.Enqueuer.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error)
}

// HookContext carries the committed transition to a post-commit hook.
// Entity reflects the state after the commit. Jobs enqueues with the
// controller's bounded retry; a hook that needs deferred or unreliable
// work must enqueue it rather than doing it inline.
type HookContext struct {
	Entity *Entity
	From   stategraph.State
	To     stategraph.State
	Event  stategraph.Event
	Data   map[string]any
	Jobs   JobEnqueuer
}

// Hook runs after a transition commits. The transition is already durable:
// a hook error cannot roll it back and is only logged. Hooks either do
// fast, local work or enqueue jobs.
type Hook interface {
	Name() string
	Run(ctx context.Context, hc HookContext) error
}

type hookFunc struct {
	name string
	fn   func(ctx context.Context, hc HookContext) error
}

func (h *hookFunc) Name() string { return h.name }

func (h *hookFunc) Run(ctx context.Context, hc HookContext) error {
	return h.fn(ctx, hc)
}

// NewHook wraps a function as a named Hook.
func NewHook(name string, fn func(ctx context.Context, hc HookContext) error) Hook {
	return &hookFunc{name: name, fn: fn}
}

// WrapJobError converts a transition error inside a job handler into the
// right job outcome: a guard rejection is fatal because retrying cannot
// change the guard's decision without new information, while conflicts and
// transient failures stay retryable.
func WrapJobError(err error) error {
	if err == nil {
		return nil
	}
	if IsGuardRejected(err) {
		return queue.Fatal(err)
	}
	return err
}
