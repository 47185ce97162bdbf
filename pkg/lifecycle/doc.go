// Package lifecycle drives state transitions for commerce entities.
//
// Every entity type registers a state graph (package stategraph) that
// declares its states and legal transitions. The Controller is the only
// writer: callers request transitions by (entity, event), and the
// controller resolves the edge, runs the registered guard chain, commits
// the new state under an optimistic-concurrency revision check and fires
// post-commit hooks.
//
// # Requesting a transition
//
//	ctrl, err := lifecycle.NewController(registry, store,
//		lifecycle.WithJobEnqueuer(enqueuer),
//	)
//	if err != nil {
//		return err
//	}
//
//	result, err := ctrl.Request(ctx, lifecycle.EntityRef{Type: "order", ID: orderID}, "settlePayment", nil)
//	switch {
//	case lifecycle.IsGuardRejected(err):
//		// business veto, entity unchanged
//	case errors.Is(err, lifecycle.ErrConcurrencyConflict):
//		// another writer got there first; re-read and retry
//	case err != nil:
//		return err
//	}
//
// # Concurrency
//
// The controller holds no per-entity locks. Each Request reads the entity,
// remembers its revision and commits with a compare-and-swap on that
// revision; when two requests race on the same entity exactly one commits
// and the other gets ErrConcurrencyConflict. Requests on distinct entities
// never contend.
//
// # Guards and hooks
//
// Guards run before the commit, sequentially in registration order; the
// first rejection aborts the attempt with a GuardRejectedError and no
// state change. An approving guard may attach a payload mutation that is
// applied atomically with the state change. Guards are bounded by a
// timeout and fail closed when they overrun it.
//
// Hooks run after the commit. They cannot undo the transition; their job
// is deferred work, typically enqueued on the job queue (package queue).
// Enqueue failures are retried a bounded number of times and then logged
// with an alert marker.
//
// # Audit trail
//
// Every attempt appends a TransitionRecord, committed or rejected, with
// per-guard diagnostics. Records are append-only and are never touched by
// later transitions.
package lifecycle
