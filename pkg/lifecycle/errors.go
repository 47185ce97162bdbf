package lifecycle

import (
	"errors"
	"fmt"

	"github.com/storekit/storekit/pkg/stategraph"
)

var (
	// ErrRegistryNil is returned when a controller is built without a registry
	ErrRegistryNil = errors.New("registry cannot be nil")

	// ErrStoreNil is returned when a controller is built without a store
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrEntityNotFound is returned when the referenced entity does not exist
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists is returned when creating an entity that already exists
	ErrEntityExists = errors.New("entity already exists")

	// ErrConcurrencyConflict is returned when the entity's revision changed
	// between read and commit; the caller should retry with fresh state
	ErrConcurrencyConflict = errors.New("entity revision changed, retry the transition")

	// ErrEnqueuerNotConfigured is returned when a hook enqueues a job but the
	// controller was built without a job enqueuer
	ErrEnqueuerNotConfigured = errors.New("no job enqueuer configured on the controller")
)

// InvalidTransitionError indicates the entity's state graph defines no edge
// for (currentState, event). The entity is unchanged.
type InvalidTransitionError struct {
	EntityType string
	State      stategraph.State
	Event      stategraph.Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("no transition from state %q for event %q on entity type %q", e.State, e.Event, e.EntityType)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

// GuardRejectedError indicates a transition guard vetoed the transition.
// The entity is unchanged; a rejected transition record was appended.
type GuardRejectedError struct {
	Guard  string
	Reason string
}

func (e *GuardRejectedError) Error() string {
	return fmt.Sprintf("transition rejected by guard %q: %s", e.Guard, e.Reason)
}

// IsGuardRejected reports whether err is a GuardRejectedError.
func IsGuardRejected(err error) bool {
	var e *GuardRejectedError
	return errors.As(err, &e)
}
