package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/storekit/storekit/pkg/stategraph"
)

// EntityRef identifies one lifecycle-managed entity.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Entity is a transactional object with a lifecycle: an order, a payment,
// a fulfillment. The persistent store owns the authoritative record; the
// controller reads and writes it only inside a transition, never caching
// it across transitions.
type Entity struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	State    stategraph.State `json:"state"`
	Revision int64            `json:"revision"`
	Payload  map[string]any   `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the entity's reference.
func (e *Entity) Ref() EntityRef {
	return EntityRef{Type: e.Type, ID: e.ID}
}

// Outcome is the result of one transition attempt.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
)

// GuardDiagnostic records one guard's decision during an attempt.
type GuardDiagnostic struct {
	Guard    string        `json:"guard"`
	Approved bool          `json:"approved"`
	Reason   string        `json:"reason,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// TransitionRecord is the append-only audit entry for one transition
// attempt, committed or rejected. Records are never mutated or deleted;
// together they form the entity's history.
type TransitionRecord struct {
	ID         uuid.UUID         `json:"id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	FromState  stategraph.State  `json:"from_state"`
	ToState    stategraph.State  `json:"to_state"`
	Event      stategraph.Event  `json:"event"`
	Outcome    Outcome           `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	Guards     []GuardDiagnostic `json:"guards,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Result is returned to the caller of a successful transition request.
type Result struct {
	Entity *Entity
	Record *TransitionRecord
}
