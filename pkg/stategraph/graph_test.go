package stategraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/stategraph"
)

func orderDefinition() stategraph.Definition {
	return stategraph.Definition{
		EntityType: "order",
		Initial:    "AddingItems",
		States:     []stategraph.State{"AddingItems", "ArrangingPayment", "PaymentSettled", "Cancelled"},
		Terminals:  []stategraph.State{"Cancelled", "PaymentSettled"},
		Edges: []stategraph.Edge{
			{From: "AddingItems", Event: "arrangePayment", To: "ArrangingPayment"},
			{From: "ArrangingPayment", Event: "settlePayment", To: "PaymentSettled"},
			{From: "AddingItems", Event: "cancel", To: "Cancelled"},
			{From: "ArrangingPayment", Event: "cancel", To: "Cancelled"},
		},
	}
}

func TestNew_ValidGraph(t *testing.T) {
	t.Parallel()

	g, err := stategraph.New(orderDefinition())
	require.NoError(t, err)

	assert.Equal(t, "order", g.EntityType())
	assert.Equal(t, stategraph.State("AddingItems"), g.Initial())
	assert.True(t, g.HasState("ArrangingPayment"))
	assert.False(t, g.HasState("Shipped"))
	assert.True(t, g.IsTerminal("Cancelled"))
	assert.False(t, g.IsTerminal("AddingItems"))

	to, ok := g.Target("AddingItems", "arrangePayment")
	require.True(t, ok)
	assert.Equal(t, stategraph.State("ArrangingPayment"), to)

	_, ok = g.Target("AddingItems", "settlePayment")
	assert.False(t, ok)
	assert.False(t, g.IsValid("Cancelled", "cancel"))
}

func TestNew_TransitionsFromIsSorted(t *testing.T) {
	t.Parallel()

	g := stategraph.MustNew(orderDefinition())

	edges := g.TransitionsFrom("AddingItems")
	require.Len(t, edges, 2)
	assert.Equal(t, stategraph.Event("arrangePayment"), edges[0].Event)
	assert.Equal(t, stategraph.Event("cancel"), edges[1].Event)

	assert.Empty(t, g.TransitionsFrom("Cancelled"))
}

func TestNew_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*stategraph.Definition)
	}{
		{
			name:   "missing entity type",
			mutate: func(d *stategraph.Definition) { d.EntityType = "" },
		},
		{
			name:   "undeclared initial state",
			mutate: func(d *stategraph.Definition) { d.Initial = "Draft" },
		},
		{
			name: "duplicate transition",
			mutate: func(d *stategraph.Definition) {
				d.Edges = append(d.Edges, stategraph.Edge{From: "AddingItems", Event: "cancel", To: "ArrangingPayment"})
			},
		},
		{
			name: "edge references undeclared state",
			mutate: func(d *stategraph.Definition) {
				d.Edges = append(d.Edges, stategraph.Edge{From: "AddingItems", Event: "ship", To: "Shipped"})
			},
		},
		{
			name: "terminal state with outgoing edge",
			mutate: func(d *stategraph.Definition) {
				d.Edges = append(d.Edges, stategraph.Edge{From: "Cancelled", Event: "reopen", To: "AddingItems"})
			},
		},
		{
			name: "unreachable state",
			mutate: func(d *stategraph.Definition) {
				d.States = append(d.States, "Refunded")
			},
		},
		{
			name: "undeclared terminal state",
			mutate: func(d *stategraph.Definition) {
				d.Terminals = append(d.Terminals, "Archived")
			},
		},
		{
			name: "empty event",
			mutate: func(d *stategraph.Definition) {
				d.Edges = append(d.Edges, stategraph.Edge{From: "AddingItems", Event: "", To: "Cancelled"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := orderDefinition()
			tt.mutate(&def)

			_, err := stategraph.New(def)
			require.Error(t, err)
			assert.True(t, stategraph.IsConfigError(err), "expected a ConfigError, got %v", err)
		})
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()

	g, err := stategraph.New(orderDefinition())
	require.NoError(t, err)

	final, err := g.Walk("AddingItems", "arrangePayment", "settlePayment")
	require.NoError(t, err)
	assert.Equal(t, stategraph.State("PaymentSettled"), final)

	// walk gets stuck on the first undefined transition
	stuck, err := g.Walk("AddingItems", "arrangePayment", "cancel", "settlePayment")
	require.Error(t, err)
	assert.Equal(t, stategraph.State("Cancelled"), stuck)

	// empty walk stays put
	same, err := g.Walk("AddingItems")
	require.NoError(t, err)
	assert.Equal(t, stategraph.State("AddingItems"), same)
}

func TestMustNew_PanicsOnInvalidDefinition(t *testing.T) {
	t.Parallel()

	def := orderDefinition()
	def.Initial = "Nowhere"

	assert.Panics(t, func() {
		stategraph.MustNew(def)
	})
}
