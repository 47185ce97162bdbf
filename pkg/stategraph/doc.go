// Package stategraph defines the static, per-entity-type lifecycle graphs
// that the lifecycle controller enforces.
//
// A graph is declared once (in code or YAML configuration) as a Definition
// and compiled into an immutable Graph by New. Compilation validates the
// declaration up front so that malformed graphs abort startup instead of
// surfacing as runtime errors:
//
//  1. Every transition references declared states only
//  2. No duplicate transition exists for the same (state, event) pair
//  3. Terminal states have no outgoing transitions
//  4. Every state is reachable from the initial state
//
// After compilation a Graph is read-only, so lifecycle operations on any
// number of goroutines consult it without locking.
//
// # Usage
//
//	graph := stategraph.MustNew(stategraph.Definition{
//	    EntityType: "order",
//	    Initial:    "AddingItems",
//	    States:     []stategraph.State{"AddingItems", "ArrangingPayment", "Cancelled"},
//	    Terminals:  []stategraph.State{"Cancelled"},
//	    Edges: []stategraph.Edge{
//	        {From: "AddingItems", Event: "arrangePayment", To: "ArrangingPayment"},
//	        {From: "AddingItems", Event: "cancel", To: "Cancelled"},
//	        {From: "ArrangingPayment", Event: "cancel", To: "Cancelled"},
//	    },
//	})
//
//	if to, ok := graph.Target("AddingItems", "arrangePayment"); ok {
//	    // to == "ArrangingPayment"
//	}
//
// Graph definitions can also be loaded from YAML via Parse or LoadFile,
// which is how deployments supply per-entity-type graphs as static
// configuration.
package stategraph
