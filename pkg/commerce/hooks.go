package commerce

import (
	"context"

	"github.com/storekit/storekit/pkg/lifecycle"
	"github.com/storekit/storekit/pkg/queue"
)

// Queue names carrying the deferred side effects of commerce transitions.
// Workers register handlers against these names.
const (
	QueueNotifications = "notifications"
	QueueSearchIndex   = "search-index"
	QueueStock         = "stock"
)

// Job names within the queues above.
const (
	JobSendOrderConfirmation = "send-order-confirmation"
	JobAllocateStock         = "allocate-stock"
	JobReindexEntity         = "reindex-entity"
)

// OrderConfirmationPayload asks the notifications worker to send the
// post-payment confirmation for an order.
type OrderConfirmationPayload struct {
	OrderID string `json:"order_id"`
}

// StockAllocationPayload asks the stock worker to convert the checked
// availability into a hard allocation for the order's lines.
type StockAllocationPayload struct {
	OrderID string `json:"order_id"`
}

// ReindexPayload asks the search-index worker to refresh one entity's
// search document after a state change.
type ReindexPayload struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	State      string `json:"state"`
}

// OrderConfirmationHook enqueues the confirmation notification once payment
// has settled.
func OrderConfirmationHook() lifecycle.Hook {
	return lifecycle.NewHook("order-confirmation", func(ctx context.Context, hc lifecycle.HookContext) error {
		_, err := hc.Jobs.Enqueue(ctx,
			OrderConfirmationPayload{OrderID: hc.Entity.ID},
			queue.WithQueue(QueueNotifications),
			queue.WithJobName(JobSendOrderConfirmation))
		return err
	})
}

// StockAllocationHook enqueues the hard stock allocation once payment is
// authorized.
func StockAllocationHook() lifecycle.Hook {
	return lifecycle.NewHook("stock-allocation", func(ctx context.Context, hc lifecycle.HookContext) error {
		_, err := hc.Jobs.Enqueue(ctx,
			StockAllocationPayload{OrderID: hc.Entity.ID},
			queue.WithQueue(QueueStock),
			queue.WithJobName(JobAllocateStock))
		return err
	})
}

// ReindexHook enqueues a search reindex of the entity that just changed
// state.
func ReindexHook() lifecycle.Hook {
	return lifecycle.NewHook("reindex", func(ctx context.Context, hc lifecycle.HookContext) error {
		_, err := hc.Jobs.Enqueue(ctx,
			ReindexPayload{
				EntityType: hc.Entity.Type,
				EntityID:   hc.Entity.ID,
				State:      hc.To.String(),
			},
			queue.WithQueue(QueueSearchIndex),
			queue.WithJobName(JobReindexEntity))
		return err
	})
}
