package commerce

import (
	"fmt"

	"github.com/storekit/storekit/pkg/lifecycle"
	"github.com/storekit/storekit/pkg/stategraph"
)

// NewRegistry composes the lifecycle registry for the commerce domain:
// the order, payment and fulfillment graphs with their guard chains and
// post-commit hooks.
//
// Guard order per transition is part of the contract:
//
//	order AddingItems -> ArrangingPayment:       non-empty-cart
//	order ArrangingPayment -> PaymentAuthorized: stock-availability
//	order ArrangingPayment -> PaymentSettled:    stock-availability
//	payment Created -> Authorized:               payment-amount
//	payment Created -> Settled:                  payment-amount
//	payment Authorized -> Settled:               payment-amount
func NewRegistry(stock StockChecker) (*lifecycle.Registry, error) {
	registry := lifecycle.NewRegistry()

	for _, def := range []stategraph.Definition{
		OrderDefinition(),
		PaymentDefinition(),
		FulfillmentDefinition(),
	} {
		g, err := stategraph.New(def)
		if err != nil {
			return nil, fmt.Errorf("compile %s graph: %w", def.EntityType, err)
		}
		if err := registry.RegisterGraph(g); err != nil {
			return nil, err
		}
	}

	if err := registry.RegisterGuards(EntityOrder, OrderAddingItems, OrderArrangingPayment,
		NonEmptyCartGuard()); err != nil {
		return nil, err
	}
	if err := registry.RegisterGuards(EntityOrder, OrderArrangingPayment, OrderPaymentAuthorized,
		StockAvailabilityGuard(stock)); err != nil {
		return nil, err
	}
	if err := registry.RegisterGuards(EntityOrder, OrderArrangingPayment, OrderPaymentSettled,
		StockAvailabilityGuard(stock)); err != nil {
		return nil, err
	}

	amountGuard := PaymentAmountGuard()
	for _, edge := range []struct{ from, to stategraph.State }{
		{PaymentCreated, PaymentAuthorized},
		{PaymentCreated, PaymentSettled},
		{PaymentAuthorized, PaymentSettled},
	} {
		if err := registry.RegisterGuards(EntityPayment, edge.from, edge.to, amountGuard); err != nil {
			return nil, err
		}
	}

	if err := registry.RegisterHooks(EntityOrder, OrderPaymentAuthorized, StockAllocationHook()); err != nil {
		return nil, err
	}
	if err := registry.RegisterHooks(EntityOrder, OrderPaymentSettled, OrderConfirmationHook()); err != nil {
		return nil, err
	}
	for _, state := range []stategraph.State{OrderCancelled, OrderDelivered} {
		if err := registry.RegisterHooks(EntityOrder, state, ReindexHook()); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
