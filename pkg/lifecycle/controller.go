package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storekit/storekit/pkg/queue"
	"github.com/storekit/storekit/pkg/stategraph"
)

// Controller is the state machine engine: it accepts transition requests,
// consults the entity's state graph and guard chain, commits approved
// changes under the optimistic-concurrency check and fires post-commit
// hooks.
//
// Transitions on distinct entities proceed fully in parallel. Concurrent
// requests against the same entity serialize through the revision check,
// never through a held lock, so the controller never blocks on a slow
// caller.
type Controller struct {
	registry *Registry
	store    Store
	jobs     JobEnqueuer
	logger   *slog.Logger

	guardTimeout      time.Duration
	enqueueAttempts   int
	enqueueRetryDelay time.Duration
}

// NewController creates a lifecycle controller. The registry is the
// startup-composed extension surface; it must not be mutated afterwards.
func NewController(registry *Registry, store Store, opts ...ControllerOption) (*Controller, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}
	if store == nil {
		return nil, ErrStoreNil
	}

	options := &controllerOptions{
		guardTimeout:      5 * time.Second,
		enqueueAttempts:   3,
		enqueueRetryDelay: 100 * time.Millisecond,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Controller{
		registry:          registry,
		store:             store,
		jobs:              options.jobs,
		logger:            options.logger,
		guardTimeout:      options.guardTimeout,
		enqueueAttempts:   options.enqueueAttempts,
		enqueueRetryDelay: options.enqueueRetryDelay,
	}, nil
}

// Create persists a new entity in its graph's initial state at revision 1.
func (c *Controller) Create(ctx context.Context, ref EntityRef, payload map[string]any) (*Entity, error) {
	graph, err := c.registry.Graph(ref.Type)
	if err != nil {
		return nil, err
	}

	e := &Entity{
		ID:       ref.ID,
		Type:     ref.Type,
		State:    graph.Initial(),
		Revision: 1,
		Payload:  payload,
	}
	if err := c.store.CreateEntity(ctx, e); err != nil {
		return nil, err
	}
	return c.store.GetEntity(ctx, ref)
}

// Get returns the entity's current persisted state, read-only.
func (c *Controller) Get(ctx context.Context, ref EntityRef) (*Entity, error) {
	return c.store.GetEntity(ctx, ref)
}

// History returns the entity's transition records, oldest first.
func (c *Controller) History(ctx context.Context, ref EntityRef) ([]TransitionRecord, error) {
	return c.store.History(ctx, ref)
}

// Request asks for one state transition on the referenced entity.
//
// The attempt reads the entity, resolves (currentState, event) against the
// graph, runs the ordered guard chain and commits the new state together
// with guard-approved payload mutations and a committed transition record.
// Every attempt, including rejected ones, appends a transition record.
//
// Errors: InvalidTransitionError when the graph defines no edge,
// GuardRejectedError on the first guard veto, ErrConcurrencyConflict when
// the entity's revision moved between read and commit (retry with fresh
// state). In all three cases the entity itself is unchanged.
func (c *Controller) Request(ctx context.Context, ref EntityRef, event stategraph.Event, data map[string]any) (*Result, error) {
	graph, err := c.registry.Graph(ref.Type)
	if err != nil {
		return nil, err
	}

	entity, err := c.store.GetEntity(ctx, ref)
	if err != nil {
		return nil, err
	}

	target, ok := graph.Target(entity.State, event)
	if !ok {
		invalidErr := &InvalidTransitionError{EntityType: ref.Type, State: entity.State, Event: event}
		c.appendRejectedRecord(ctx, entity, event, entity.State, invalidErr.Error(), nil)
		return nil, invalidErr
	}

	diagnostics, mutation, rejection := c.runGuardChain(ctx, entity, event, target, data)
	if rejection != nil {
		c.appendRejectedRecord(ctx, entity, event, target, rejection.Reason, diagnostics)
		return nil, rejection
	}

	record := &TransitionRecord{
		ID:         uuid.New(),
		EntityType: ref.Type,
		EntityID:   ref.ID,
		FromState:  entity.State,
		ToState:    target,
		Event:      event,
		Outcome:    OutcomeCommitted,
		Guards:     diagnostics,
		CreatedAt:  time.Now(),
	}

	updated, err := c.store.ApplyTransition(ctx, ApplyTransitionParams{
		Ref:              ref,
		ExpectedRevision: entity.Revision,
		ToState:          target,
		Mutation:         mutation,
		Record:           record,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("transition committed",
		slog.String("entity_type", ref.Type),
		slog.String("entity_id", ref.ID),
		slog.String("from", entity.State.String()),
		slog.String("to", target.String()),
		slog.String("event", event.String()),
		slog.Int64("revision", updated.Revision))

	c.runHooks(ctx, updated, entity.State, target, event, data)

	return &Result{Entity: updated, Record: record}, nil
}

// runGuardChain executes the ordered guards for the transition. The first
// rejection short-circuits; approvals may contribute payload mutations,
// merged in chain order so later guards override earlier keys.
func (c *Controller) runGuardChain(ctx context.Context, entity *Entity, event stategraph.Event, target stategraph.State, data map[string]any) ([]GuardDiagnostic, map[string]any, *GuardRejectedError) {
	chain := c.registry.GuardChain(entity.Type, entity.State, target)
	if len(chain) == 0 {
		return nil, nil, nil
	}

	gc := GuardContext{
		Entity: entity,
		From:   entity.State,
		To:     target,
		Event:  event,
		Data:   data,
	}

	diagnostics := make([]GuardDiagnostic, 0, len(chain))
	var mutation map[string]any

	for _, guard := range chain {
		start := time.Now()
		decision := c.runGuard(ctx, guard, gc)
		diag := GuardDiagnostic{
			Guard:    guard.Name(),
			Approved: decision.Approved(),
			Reason:   decision.Reason(),
			Elapsed:  time.Since(start),
		}
		diagnostics = append(diagnostics, diag)

		if !decision.Approved() {
			return diagnostics, nil, &GuardRejectedError{Guard: guard.Name(), Reason: decision.Reason()}
		}
		if m := decision.Mutation(); len(m) > 0 {
			if mutation == nil {
				mutation = make(map[string]any, len(m))
			}
			for k, v := range m {
				mutation[k] = v
			}
		}
	}

	return diagnostics, mutation, nil
}

// runGuard enforces the guard timeout. A guard that overruns it fails
// closed: the transition is rejected rather than left hanging on slow I/O.
func (c *Controller) runGuard(ctx context.Context, guard Guard, gc GuardContext) Decision {
	tctx, cancel := context.WithTimeout(ctx, c.guardTimeout)
	defer cancel()

	done := make(chan Decision, 1)
	go func() {
		done <- guard.Check(tctx, gc)
	}()

	select {
	case d := <-done:
		return d
	case <-tctx.Done():
		return Reject("guard timed out")
	}
}

// appendRejectedRecord writes the audit entry for a rejected attempt.
// Rejections leave the entity untouched, so a failure to append is logged
// rather than surfaced; the caller's error already describes the veto.
func (c *Controller) appendRejectedRecord(ctx context.Context, entity *Entity, event stategraph.Event, target stategraph.State, reason string, diagnostics []GuardDiagnostic) {
	record := &TransitionRecord{
		ID:         uuid.New(),
		EntityType: entity.Type,
		EntityID:   entity.ID,
		FromState:  entity.State,
		ToState:    target,
		Event:      event,
		Outcome:    OutcomeRejected,
		Reason:     reason,
		Guards:     diagnostics,
		CreatedAt:  time.Now(),
	}
	if err := c.store.AppendRecord(ctx, record); err != nil {
		c.logger.Error("failed to append rejected transition record",
			slog.String("entity_type", entity.Type),
			slog.String("entity_id", entity.ID),
			slog.String("event", event.String()),
			slog.String("error", err.Error()))
	}
}

// runHooks fires the post-commit hooks for the target state. The
// transition is already durable, so hook failures are logged and never
// propagate; recovery for failed deferred work is the job queue.
func (c *Controller) runHooks(ctx context.Context, entity *Entity, from, to stategraph.State, event stategraph.Event, data map[string]any) {
	hooks := c.registry.Hooks(entity.Type, to)
	if len(hooks) == 0 {
		return
	}

	hc := HookContext{
		Entity: entity,
		From:   from,
		To:     to,
		Event:  event,
		Data:   data,
		Jobs: &retryingEnqueuer{
			inner:    c.jobs,
			attempts: c.enqueueAttempts,
			delay:    c.enqueueRetryDelay,
			logger:   c.logger,
		},
	}

	for _, hook := range hooks {
		if err := hook.Run(ctx, hc); err != nil {
			c.logger.Error("post-commit hook failed",
				slog.String("hook", hook.Name()),
				slog.String("entity_type", entity.Type),
				slog.String("entity_id", entity.ID),
				slog.String("state", to.String()),
				slog.String("error", err.Error()))
		}
	}
}

// retryingEnqueuer retries hook enqueue failures a bounded number of times
// and then escalates through logging: the transition is committed, so a
// lost enqueue is an operational alert, not a rollback.
type retryingEnqueuer struct {
	inner    JobEnqueuer
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

func (r *retryingEnqueuer) Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	if r.inner == nil {
		return uuid.Nil, ErrEnqueuerNotConfigured
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		jobID, err := r.inner.Enqueue(ctx, payload, opts...)
		if err == nil {
			return jobID, nil
		}
		lastErr = err

		if attempt < r.attempts {
			select {
			case <-ctx.Done():
				return uuid.Nil, errors.Join(lastErr, ctx.Err())
			case <-time.After(r.delay):
			}
		}
	}

	r.logger.Error("failed to enqueue job from post-commit hook",
		slog.Int("attempts", r.attempts),
		slog.String("error", lastErr.Error()),
		slog.Bool("alert", true))

	return uuid.Nil, lastErr
}
