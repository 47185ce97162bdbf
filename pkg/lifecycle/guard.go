package lifecycle

import (
	"context"

	"github.com/storekit/storekit/pkg/stategraph"
)

// GuardContext carries everything a guard may inspect: the entity as read
// at the start of the attempt, the edge being taken and the caller-supplied
// context data. Guards must not mutate the entity directly; approved data
// changes are returned as a mutation and applied atomically with the state
// change.
type GuardContext struct {
	Entity *Entity
	From   stategraph.State
	To     stategraph.State
	Event  stategraph.Event
	Data   map[string]any
}

// Decision is a guard's verdict on a transition.
type Decision struct {
	approved bool
	reason   string
	mutation map[string]any
}

// Approve allows the transition.
func Approve() Decision {
	return Decision{approved: true}
}

// ApproveWithMutation allows the transition and merges the given keys into
// the entity payload in the same transaction that commits the state change.
func ApproveWithMutation(mutation map[string]any) Decision {
	return Decision{approved: true, mutation: mutation}
}

// Reject vetoes the transition with a machine-readable reason, e.g.
// "OUT_OF_STOCK". The first rejection short-circuits the guard chain.
func Reject(reason string) Decision {
	return Decision{reason: reason}
}

// Approved reports whether the guard allowed the transition.
func (d Decision) Approved() bool { return d.approved }

// Reason returns the rejection reason, empty for approvals.
func (d Decision) Reason() string { return d.reason }

// Mutation returns the payload changes attached to an approval, if any.
func (d Decision) Mutation() map[string]any { return d.mutation }

// Guard validates a transition before it is committed. Guards for a given
// (entity type, transition) run sequentially in their configured order;
// the first rejection aborts the attempt with no side effects.
//
// Guards must not perform unbounded-latency I/O: the controller enforces a
// timeout and fails closed (rejects) when a guard overruns it. Slow work
// belongs in a post-commit hook via the job queue.
type Guard interface {
	Name() string
	Check(ctx context.Context, gc GuardContext) Decision
}

type guardFunc struct {
	name string
	fn   func(ctx context.Context, gc GuardContext) Decision
}

func (g *guardFunc) Name() string { return g.name }

func (g *guardFunc) Check(ctx context.Context, gc GuardContext) Decision {
	return g.fn(ctx, gc)
}

// NewGuard wraps a function as a named Guard.
func NewGuard(name string, fn func(ctx context.Context, gc GuardContext) Decision) Guard {
	return &guardFunc{name: name, fn: fn}
}
