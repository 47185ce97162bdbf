package stategraph

import (
	"fmt"
	"slices"
)

// State is a named state in an entity's lifecycle graph.
type State string

func (s State) String() string { return string(s) }

// Event names the trigger that moves an entity from one state to another.
type Event string

func (e Event) String() string { return string(e) }

// Edge is a single directed transition in a graph.
type Edge struct {
	From  State `yaml:"from" json:"from"`
	Event Event `yaml:"event" json:"event"`
	To    State `yaml:"to" json:"to"`
}

// Definition declares a graph for one entity type. It is the unit of
// static configuration: built in code or decoded from YAML, then compiled
// into an immutable Graph via New.
type Definition struct {
	EntityType string  `yaml:"entity_type" json:"entity_type"`
	States     []State `yaml:"states" json:"states"`
	Initial    State   `yaml:"initial" json:"initial"`
	Terminals  []State `yaml:"terminals" json:"terminals"`
	Edges      []Edge  `yaml:"transitions" json:"transitions"`
}

// Graph is the compiled, immutable transition table for one entity type.
// All lookups are read-only after construction, so concurrent use needs
// no locking.
type Graph struct {
	entityType string
	initial    State
	states     map[State]struct{}
	terminals  map[State]struct{}
	// edges[from][event] -> to
	edges map[State]map[Event]State
}

// New compiles a Definition into a Graph. Any structural defect is a
// configuration error: duplicate (state, event) pairs, edges referencing
// undeclared states, outgoing edges on terminal states, or states
// unreachable from the initial state.
func New(def Definition) (*Graph, error) {
	if def.EntityType == "" {
		return nil, newConfigError(def.EntityType, "entity type is required")
	}
	if len(def.States) == 0 {
		return nil, newConfigError(def.EntityType, "at least one state is required")
	}

	g := &Graph{
		entityType: def.EntityType,
		initial:    def.Initial,
		states:     make(map[State]struct{}, len(def.States)),
		terminals:  make(map[State]struct{}, len(def.Terminals)),
		edges:      make(map[State]map[Event]State),
	}

	for _, s := range def.States {
		if _, dup := g.states[s]; dup {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("state %q declared twice", s))
		}
		g.states[s] = struct{}{}
	}

	if _, ok := g.states[def.Initial]; !ok {
		return nil, newConfigError(def.EntityType, fmt.Sprintf("initial state %q is not a declared state", def.Initial))
	}

	for _, s := range def.Terminals {
		if _, ok := g.states[s]; !ok {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("terminal state %q is not a declared state", s))
		}
		g.terminals[s] = struct{}{}
	}

	for _, e := range def.Edges {
		if _, ok := g.states[e.From]; !ok {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("transition references undeclared state %q", e.From))
		}
		if _, ok := g.states[e.To]; !ok {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("transition references undeclared state %q", e.To))
		}
		if e.Event == "" {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("transition from %q has an empty event", e.From))
		}
		if _, terminal := g.terminals[e.From]; terminal {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("terminal state %q has an outgoing transition", e.From))
		}
		if _, exists := g.edges[e.From][e.Event]; exists {
			return nil, newConfigError(def.EntityType, fmt.Sprintf("duplicate transition for state %q and event %q", e.From, e.Event))
		}
		if g.edges[e.From] == nil {
			g.edges[e.From] = make(map[Event]State)
		}
		g.edges[e.From][e.Event] = e.To
	}

	if unreachable := g.unreachableStates(); len(unreachable) > 0 {
		return nil, newConfigError(def.EntityType, fmt.Sprintf("states %v are unreachable from initial state %q", unreachable, def.Initial))
	}

	return g, nil
}

// MustNew compiles a Definition and panics on configuration errors.
// Graphs are startup configuration; a malformed one should prevent boot.
func MustNew(def Definition) *Graph {
	g, err := New(def)
	if err != nil {
		panic(fmt.Sprintf("stategraph: %v", err))
	}
	return g
}

// EntityType returns the entity type this graph governs.
func (g *Graph) EntityType() string { return g.entityType }

// Initial returns the designated starting state.
func (g *Graph) Initial() State { return g.initial }

// HasState reports whether the state is declared in the graph.
func (g *Graph) HasState(s State) bool {
	_, ok := g.states[s]
	return ok
}

// IsTerminal reports whether the state has been declared terminal.
// Terminal states never have outgoing transitions.
func (g *Graph) IsTerminal(s State) bool {
	_, ok := g.terminals[s]
	return ok
}

// Target resolves (from, event) to the destination state. The second
// return value is false when no such transition is defined.
func (g *Graph) Target(from State, event Event) (State, bool) {
	to, ok := g.edges[from][event]
	return to, ok
}

// IsValid reports whether the event is defined for the given state.
func (g *Graph) IsValid(from State, event Event) bool {
	_, ok := g.Target(from, event)
	return ok
}

// Walk follows a sequence of events from the given state and returns the
// final state. It fails on the first event with no defined transition,
// naming the state it got stuck in. Useful for validating configured
// process flows at startup.
func (g *Graph) Walk(from State, events ...Event) (State, error) {
	current := from
	for _, ev := range events {
		to, ok := g.Target(current, ev)
		if !ok {
			return current, fmt.Errorf("no transition from state %q for event %q", current, ev)
		}
		current = to
	}
	return current, nil
}

// TransitionsFrom returns the outgoing edges of a state in a stable
// (event-sorted) order. The slice is a copy; callers may mutate it.
func (g *Graph) TransitionsFrom(from State) []Edge {
	events := g.edges[from]
	if len(events) == 0 {
		return nil
	}
	out := make([]Edge, 0, len(events))
	for ev, to := range events {
		out = append(out, Edge{From: from, Event: ev, To: to})
	}
	slices.SortFunc(out, func(a, b Edge) int {
		switch {
		case a.Event < b.Event:
			return -1
		case a.Event > b.Event:
			return 1
		default:
			return 0
		}
	})
	return out
}

// States returns all declared states in sorted order.
func (g *Graph) States() []State {
	out := make([]State, 0, len(g.states))
	for s := range g.states {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// unreachableStates runs a breadth-first walk from the initial state and
// returns any states the walk never visits, in sorted order.
func (g *Graph) unreachableStates() []State {
	visited := map[State]struct{}{g.initial: {}}
	frontier := []State{g.initial}
	for len(frontier) > 0 {
		s := frontier[0]
		frontier = frontier[1:]
		for _, to := range g.edges[s] {
			if _, seen := visited[to]; !seen {
				visited[to] = struct{}{}
				frontier = append(frontier, to)
			}
		}
	}

	var unreachable []State
	for s := range g.states {
		if _, seen := visited[s]; !seen {
			unreachable = append(unreachable, s)
		}
	}
	slices.Sort(unreachable)
	return unreachable
}
