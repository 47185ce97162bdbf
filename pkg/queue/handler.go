package queue

import (
	"context"
	"encoding/json"
)

// Handler executes jobs claimed from a queue. Name must match the job name
// used at enqueue time. Handle returning nil reports success; a plain error
// is retryable; an error wrapped with Fatal marks the job failed without
// further attempts.
//
// Handlers must be idempotent: the queue guarantees at-least-once delivery,
// so a crash after the work but before the report re-delivers the job. When
// the job's effect is itself a transition request, the entity's revision
// check is a natural idempotence barrier.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// JobHandlerFunc is a typed handler body; the payload is decoded from the
// job's JSON payload before invocation.
type JobHandlerFunc[T any] func(ctx context.Context, payload T) error

// NewJobHandler builds a Handler for payload type T, named after the
// payload's qualified struct name unless overridden at enqueue time.
func NewJobHandler[T any](handler JobHandlerFunc[T]) Handler {
	var zero T
	return &jobHandler[T]{
		name:    qualifiedStructName(zero),
		handler: handler,
	}
}

// NewNamedJobHandler builds a Handler with an explicit name, used for the
// well-known collaborator queues (e.g. "send-order-confirmation") whose
// names are a cross-service contract rather than a Go type.
func NewNamedJobHandler[T any](name string, handler JobHandlerFunc[T]) Handler {
	return &jobHandler[T]{
		name:    name,
		handler: handler,
	}
}

type jobHandler[T any] struct {
	name    string
	handler JobHandlerFunc[T]
}

func (h *jobHandler[T]) Name() string { return h.name }

func (h *jobHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		// A payload that cannot decode will never decode; don't retry.
		return Fatal(err)
	}
	return h.handler(ctx, t)
}
