package lifecycle

import (
	"context"

	"github.com/storekit/storekit/pkg/stategraph"
)

// ApplyTransitionParams describes one transition commit. ExpectedRevision
// is the revision read at the start of the attempt; the store must refuse
// the commit with ErrConcurrencyConflict if the persisted revision no
// longer matches.
type ApplyTransitionParams struct {
	Ref              EntityRef
	ExpectedRevision int64
	ToState          stategraph.State

	// Mutation holds guard-approved payload changes, merged into the
	// entity payload atomically with the state change. Nil values delete
	// the key.
	Mutation map[string]any

	// Record is the committed transition record, appended in the same
	// transaction as the state change.
	Record *TransitionRecord
}

// Store is the persistence contract for entities and their transition
// history. The store exclusively owns durable entity state; the controller
// mutates it only through ApplyTransition, and nothing else writes it.
type Store interface {
	// CreateEntity persists a new entity. Fails with ErrEntityExists when
	// the (type, id) pair is taken.
	CreateEntity(ctx context.Context, e *Entity) error

	// GetEntity loads the current entity. Fails with ErrEntityNotFound.
	GetEntity(ctx context.Context, ref EntityRef) (*Entity, error)

	// ApplyTransition commits a state change guarded by the revision check
	// and appends the committed record atomically. Returns the updated
	// entity, or ErrConcurrencyConflict when the revision moved.
	ApplyTransition(ctx context.Context, p ApplyTransitionParams) (*Entity, error)

	// AppendRecord appends a record outside a commit, used for rejected
	// attempts. Records are append-only; they are never updated or removed.
	AppendRecord(ctx context.Context, r *TransitionRecord) error

	// History returns the entity's transition records, oldest first.
	History(ctx context.Context, ref EntityRef) ([]TransitionRecord, error)
}
