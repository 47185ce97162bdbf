package commerce

import "github.com/storekit/storekit/pkg/stategraph"

// EntityFulfillment is the entity type key for fulfillments.
const EntityFulfillment = "fulfillment"

// Fulfillment states.
const (
	FulfillmentPending   stategraph.State = "Pending"
	FulfillmentShipped   stategraph.State = "Shipped"
	FulfillmentDelivered stategraph.State = "Delivered"
	FulfillmentCancelled stategraph.State = "Cancelled"
)

// FulfillmentDefinition declares the fulfillment process: a shipment is
// prepared, handed to the carrier and arrives. It can only be cancelled
// before it ships.
func FulfillmentDefinition() stategraph.Definition {
	return stategraph.Definition{
		EntityType: EntityFulfillment,
		States: []stategraph.State{
			FulfillmentPending,
			FulfillmentShipped,
			FulfillmentDelivered,
			FulfillmentCancelled,
		},
		Initial:   FulfillmentPending,
		Terminals: []stategraph.State{FulfillmentDelivered, FulfillmentCancelled},
		Edges: []stategraph.Edge{
			{From: FulfillmentPending, Event: EventShip, To: FulfillmentShipped},
			{From: FulfillmentPending, Event: EventCancel, To: FulfillmentCancelled},
			{From: FulfillmentShipped, Event: EventDeliver, To: FulfillmentDelivered},
		},
	}
}
