package lifecycle

import (
	"fmt"

	"github.com/storekit/storekit/pkg/stategraph"
)

type guardKey struct {
	entityType string
	from       stategraph.State
	to         stategraph.State
}

type hookKey struct {
	entityType string
	state      stategraph.State
}

// Registry composes the static extension surface of the engine: state
// graphs per entity type, ordered guard chains per transition and
// post-commit hooks per target state. It is built once at startup from
// configuration and injected into the controller; it must not be mutated
// after the controller starts serving requests, which is what makes
// lock-free concurrent reads safe.
//
// Guard order is a contract: chains run in registration order, so
// configuration decides order explicitly (e.g. stock availability before
// payment capture) instead of inheriting it from package init order.
type Registry struct {
	graphs map[string]*stategraph.Graph
	guards map[guardKey][]Guard
	hooks  map[hookKey][]Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		graphs: make(map[string]*stategraph.Graph),
		guards: make(map[guardKey][]Guard),
		hooks:  make(map[hookKey][]Hook),
	}
}

// RegisterGraph adds the state graph for an entity type. Each entity type
// has exactly one graph.
func (r *Registry) RegisterGraph(g *stategraph.Graph) error {
	if g == nil {
		return fmt.Errorf("graph cannot be nil")
	}
	if _, exists := r.graphs[g.EntityType()]; exists {
		return fmt.Errorf("graph for entity type %q already registered", g.EntityType())
	}
	r.graphs[g.EntityType()] = g
	return nil
}

// RegisterGuards appends guards to the chain for the (entityType, from, to)
// transition, preserving order across calls. The transition must exist in
// the registered graph; registering guards for an edge the graph does not
// define is a configuration mistake caught at startup.
func (r *Registry) RegisterGuards(entityType string, from, to stategraph.State, guards ...Guard) error {
	g, ok := r.graphs[entityType]
	if !ok {
		return fmt.Errorf("%w: %q", stategraph.ErrGraphNotFound, entityType)
	}

	found := false
	for _, edge := range g.TransitionsFrom(from) {
		if edge.To == to {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("graph for %q defines no transition %s -> %s", entityType, from, to)
	}

	key := guardKey{entityType: entityType, from: from, to: to}
	for _, guard := range guards {
		if guard != nil {
			r.guards[key] = append(r.guards[key], guard)
		}
	}
	return nil
}

// RegisterHooks appends post-commit hooks for transitions into the given
// target state, preserving order across calls.
func (r *Registry) RegisterHooks(entityType string, state stategraph.State, hooks ...Hook) error {
	g, ok := r.graphs[entityType]
	if !ok {
		return fmt.Errorf("%w: %q", stategraph.ErrGraphNotFound, entityType)
	}
	if !g.HasState(state) {
		return fmt.Errorf("graph for %q has no state %q", entityType, state)
	}

	key := hookKey{entityType: entityType, state: state}
	for _, hook := range hooks {
		if hook != nil {
			r.hooks[key] = append(r.hooks[key], hook)
		}
	}
	return nil
}

// Graph returns the state graph for an entity type.
func (r *Registry) Graph(entityType string) (*stategraph.Graph, error) {
	g, ok := r.graphs[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", stategraph.ErrGraphNotFound, entityType)
	}
	return g, nil
}

// GuardChain returns the ordered guard chain for a transition. The chain
// may be empty; an unguarded transition is simply allowed.
func (r *Registry) GuardChain(entityType string, from, to stategraph.State) []Guard {
	return r.guards[guardKey{entityType: entityType, from: from, to: to}]
}

// Hooks returns the ordered post-commit hooks for a target state.
func (r *Registry) Hooks(entityType string, state stategraph.State) []Hook {
	return r.hooks[hookKey{entityType: entityType, state: state}]
}
