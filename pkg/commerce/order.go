package commerce

import "github.com/storekit/storekit/pkg/stategraph"

// EntityOrder is the entity type key for orders.
const EntityOrder = "order"

// Order states.
const (
	OrderAddingItems        stategraph.State = "AddingItems"
	OrderArrangingPayment   stategraph.State = "ArrangingPayment"
	OrderPaymentAuthorized  stategraph.State = "PaymentAuthorized"
	OrderPaymentSettled     stategraph.State = "PaymentSettled"
	OrderPartiallyShipped   stategraph.State = "PartiallyShipped"
	OrderShipped            stategraph.State = "Shipped"
	OrderPartiallyDelivered stategraph.State = "PartiallyDelivered"
	OrderDelivered          stategraph.State = "Delivered"
	OrderCancelled          stategraph.State = "Cancelled"
)

// Order events.
const (
	EventArrangePayment   stategraph.Event = "arrangePayment"
	EventAuthorizePayment stategraph.Event = "authorizePayment"
	EventSettlePayment    stategraph.Event = "settlePayment"
	EventShipPartial      stategraph.Event = "shipPartial"
	EventShip             stategraph.Event = "ship"
	EventDeliverPartial   stategraph.Event = "deliverPartial"
	EventDeliver          stategraph.Event = "deliver"
	EventCancel           stategraph.Event = "cancel"
)

// OrderDefinition declares the default order process: items are collected,
// payment is arranged and captured, goods ship and arrive. An order can be
// cancelled from any state until it is delivered.
func OrderDefinition() stategraph.Definition {
	return stategraph.Definition{
		EntityType: EntityOrder,
		States: []stategraph.State{
			OrderAddingItems,
			OrderArrangingPayment,
			OrderPaymentAuthorized,
			OrderPaymentSettled,
			OrderPartiallyShipped,
			OrderShipped,
			OrderPartiallyDelivered,
			OrderDelivered,
			OrderCancelled,
		},
		Initial:   OrderAddingItems,
		Terminals: []stategraph.State{OrderDelivered, OrderCancelled},
		Edges: []stategraph.Edge{
			{From: OrderAddingItems, Event: EventArrangePayment, To: OrderArrangingPayment},
			{From: OrderArrangingPayment, Event: EventAuthorizePayment, To: OrderPaymentAuthorized},
			{From: OrderArrangingPayment, Event: EventSettlePayment, To: OrderPaymentSettled},
			{From: OrderPaymentAuthorized, Event: EventSettlePayment, To: OrderPaymentSettled},
			{From: OrderPaymentSettled, Event: EventShipPartial, To: OrderPartiallyShipped},
			{From: OrderPaymentSettled, Event: EventShip, To: OrderShipped},
			{From: OrderPartiallyShipped, Event: EventShip, To: OrderShipped},
			{From: OrderPartiallyShipped, Event: EventDeliverPartial, To: OrderPartiallyDelivered},
			{From: OrderShipped, Event: EventDeliverPartial, To: OrderPartiallyDelivered},
			{From: OrderShipped, Event: EventDeliver, To: OrderDelivered},
			{From: OrderPartiallyDelivered, Event: EventDeliver, To: OrderDelivered},

			{From: OrderAddingItems, Event: EventCancel, To: OrderCancelled},
			{From: OrderArrangingPayment, Event: EventCancel, To: OrderCancelled},
			{From: OrderPaymentAuthorized, Event: EventCancel, To: OrderCancelled},
			{From: OrderPaymentSettled, Event: EventCancel, To: OrderCancelled},
			{From: OrderPartiallyShipped, Event: EventCancel, To: OrderCancelled},
			{From: OrderShipped, Event: EventCancel, To: OrderCancelled},
			{From: OrderPartiallyDelivered, Event: EventCancel, To: OrderCancelled},
		},
	}
}
