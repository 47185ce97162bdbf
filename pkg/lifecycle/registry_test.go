package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/lifecycle"
	"github.com/storekit/storekit/pkg/stategraph"
)

func TestRegistryGraphs(t *testing.T) {
	t.Parallel()

	t.Run("duplicate graph registration", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		require.NoError(t, registry.RegisterGraph(newTestGraph(t)))
		require.Error(t, registry.RegisterGraph(newTestGraph(t)))
	})

	t.Run("unknown entity type", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		_, err := registry.Graph("invoice")
		require.ErrorIs(t, err, stategraph.ErrGraphNotFound)
	})
}

func TestRegistryGuards(t *testing.T) {
	t.Parallel()

	approve := func(ctx context.Context, gc lifecycle.GuardContext) lifecycle.Decision {
		return lifecycle.Approve()
	}

	t.Run("rejects guards for undefined transitions", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		require.NoError(t, registry.RegisterGraph(newTestGraph(t)))

		err := registry.RegisterGuards("subscription", "draft", "paused", lifecycle.NewGuard("g", approve))
		require.Error(t, err)
	})

	t.Run("rejects guards for unregistered entity types", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		err := registry.RegisterGuards("invoice", "draft", "active", lifecycle.NewGuard("g", approve))
		require.ErrorIs(t, err, stategraph.ErrGraphNotFound)
	})

	t.Run("preserves order across calls", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		require.NoError(t, registry.RegisterGraph(newTestGraph(t)))

		require.NoError(t, registry.RegisterGuards("subscription", "draft", "active",
			lifecycle.NewGuard("first", approve),
			lifecycle.NewGuard("second", approve)))
		require.NoError(t, registry.RegisterGuards("subscription", "draft", "active",
			lifecycle.NewGuard("third", approve)))

		chain := registry.GuardChain("subscription", "draft", "active")
		require.Len(t, chain, 3)
		assert.Equal(t, "first", chain[0].Name())
		assert.Equal(t, "second", chain[1].Name())
		assert.Equal(t, "third", chain[2].Name())
	})

	t.Run("empty chain for unguarded transition", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		require.NoError(t, registry.RegisterGraph(newTestGraph(t)))
		assert.Empty(t, registry.GuardChain("subscription", "active", "paused"))
	})
}

func TestRegistryHooks(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, hc lifecycle.HookContext) error { return nil }

	t.Run("rejects hooks for undeclared states", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		require.NoError(t, registry.RegisterGraph(newTestGraph(t)))

		err := registry.RegisterHooks("subscription", "archived", lifecycle.NewHook("h", noop))
		require.Error(t, err)
	})

	t.Run("preserves order across calls", func(t *testing.T) {
		t.Parallel()
		registry := lifecycle.NewRegistry()
		require.NoError(t, registry.RegisterGraph(newTestGraph(t)))

		require.NoError(t, registry.RegisterHooks("subscription", "active",
			lifecycle.NewHook("first", noop)))
		require.NoError(t, registry.RegisterHooks("subscription", "active",
			lifecycle.NewHook("second", noop)))

		hooks := registry.Hooks("subscription", "active")
		require.Len(t, hooks, 2)
		assert.Equal(t, "first", hooks[0].Name())
		assert.Equal(t, "second", hooks[1].Name())
	})
}
