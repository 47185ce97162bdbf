package commerce

import "github.com/storekit/storekit/pkg/stategraph"

// EntityPayment is the entity type key for payments.
const EntityPayment = "payment"

// Payment states.
const (
	PaymentCreated    stategraph.State = "Created"
	PaymentAuthorized stategraph.State = "Authorized"
	PaymentSettled    stategraph.State = "Settled"
	PaymentDeclined   stategraph.State = "Declined"
	PaymentError      stategraph.State = "Error"
	PaymentCancelled  stategraph.State = "Cancelled"
)

// Payment events.
const (
	EventAuthorize stategraph.Event = "authorize"
	EventSettle    stategraph.Event = "settle"
	EventDecline   stategraph.Event = "decline"
	EventFail      stategraph.Event = "fail"
)

// PaymentDefinition declares the payment process. A payment either settles
// immediately or goes through a separate authorize/settle pair; gateway
// declines and errors are terminal, as is cancelling an authorization.
func PaymentDefinition() stategraph.Definition {
	return stategraph.Definition{
		EntityType: EntityPayment,
		States: []stategraph.State{
			PaymentCreated,
			PaymentAuthorized,
			PaymentSettled,
			PaymentDeclined,
			PaymentError,
			PaymentCancelled,
		},
		Initial:   PaymentCreated,
		Terminals: []stategraph.State{PaymentSettled, PaymentDeclined, PaymentError, PaymentCancelled},
		Edges: []stategraph.Edge{
			{From: PaymentCreated, Event: EventAuthorize, To: PaymentAuthorized},
			{From: PaymentCreated, Event: EventSettle, To: PaymentSettled},
			{From: PaymentCreated, Event: EventDecline, To: PaymentDeclined},
			{From: PaymentCreated, Event: EventFail, To: PaymentError},
			{From: PaymentAuthorized, Event: EventSettle, To: PaymentSettled},
			{From: PaymentAuthorized, Event: EventFail, To: PaymentError},
			{From: PaymentAuthorized, Event: EventCancel, To: PaymentCancelled},
		},
	}
}
