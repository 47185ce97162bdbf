// Package commerce defines the state graphs, transition guards and
// post-commit hooks for the commerce entities the lifecycle engine
// manages: orders, payments and fulfillments.
//
// NewRegistry builds the fully wired lifecycle.Registry; pass it to
// lifecycle.NewController together with a Store and an optional job
// enqueuer:
//
//	registry, err := commerce.NewRegistry(stockChecker)
//	if err != nil {
//		return err
//	}
//	ctrl, err := lifecycle.NewController(registry, store,
//		lifecycle.WithJobEnqueuer(enqueuer),
//	)
//
// Side effects of transitions (confirmation emails, stock allocation,
// search reindexing) are not performed inline; the hooks enqueue them on
// the queues named by the Queue* constants and workers pick them up.
package commerce
