package lifecycle

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore implements Store in memory for testing and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	entities map[EntityRef]*Entity
	records  map[EntityRef][]TransitionRecord
}

// NewMemoryStore creates an in-memory entity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[EntityRef]*Entity),
		records:  make(map[EntityRef][]TransitionRecord),
	}
}

// CreateEntity implements Store.
func (ms *MemoryStore) CreateEntity(ctx context.Context, e *Entity) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ref := e.Ref()
	if _, exists := ms.entities[ref]; exists {
		return ErrEntityExists
	}

	stored := cloneEntity(e)
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Revision == 0 {
		stored.Revision = 1
	}
	ms.entities[ref] = stored
	return nil
}

// GetEntity implements Store.
func (ms *MemoryStore) GetEntity(ctx context.Context, ref EntityRef) (*Entity, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, exists := ms.entities[ref]
	if !exists {
		return nil, ErrEntityNotFound
	}
	return cloneEntity(e), nil
}

// ApplyTransition implements Store. The revision check and the record
// append happen under one lock, mirroring the single transaction a
// durable store uses.
func (ms *MemoryStore) ApplyTransition(ctx context.Context, p ApplyTransitionParams) (*Entity, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, exists := ms.entities[p.Ref]
	if !exists {
		return nil, ErrEntityNotFound
	}
	if e.Revision != p.ExpectedRevision {
		return nil, ErrConcurrencyConflict
	}

	e.State = p.ToState
	e.Revision++
	e.UpdatedAt = time.Now()
	if len(p.Mutation) > 0 {
		if e.Payload == nil {
			e.Payload = make(map[string]any, len(p.Mutation))
		}
		for k, v := range p.Mutation {
			if v == nil {
				delete(e.Payload, k)
			} else {
				e.Payload[k] = v
			}
		}
	}

	if p.Record != nil {
		ms.records[p.Ref] = append(ms.records[p.Ref], *p.Record)
	}

	return cloneEntity(e), nil
}

// AppendRecord implements Store.
func (ms *MemoryStore) AppendRecord(ctx context.Context, r *TransitionRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ref := EntityRef{Type: r.EntityType, ID: r.EntityID}
	ms.records[ref] = append(ms.records[ref], *r)
	return nil
}

// History implements Store.
func (ms *MemoryStore) History(ctx context.Context, ref EntityRef) ([]TransitionRecord, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	records := ms.records[ref]
	out := make([]TransitionRecord, len(records))
	copy(out, records)
	return out, nil
}

func cloneEntity(e *Entity) *Entity {
	clone := *e
	if e.Payload != nil {
		clone.Payload = maps.Clone(e.Payload)
	}
	return &clone
}
