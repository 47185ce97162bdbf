package commerce_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/commerce"
	"github.com/storekit/storekit/pkg/lifecycle"
	"github.com/storekit/storekit/pkg/queue"
	"github.com/storekit/storekit/pkg/stategraph"
)

type fakeStock struct {
	mu    sync.Mutex
	stock map[string]int
}

func newFakeStock(stock map[string]int) *fakeStock {
	return &fakeStock{stock: stock}
}

func (f *fakeStock) Available(ctx context.Context, sku string, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[sku] >= quantity, nil
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []recordedJob
}

type recordedJob struct {
	payload any
	opts    []queue.EnqueueOption
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, recordedJob{payload: payload, opts: opts})
	return uuid.New(), nil
}

func (r *recordingEnqueuer) payloads() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.payload
	}
	return out
}

func newOrderController(t *testing.T, stock commerce.StockChecker, enqueuer lifecycle.JobEnqueuer) *lifecycle.Controller {
	t.Helper()
	registry, err := commerce.NewRegistry(stock)
	require.NoError(t, err)

	opts := []lifecycle.ControllerOption{}
	if enqueuer != nil {
		opts = append(opts, lifecycle.WithJobEnqueuer(enqueuer))
	}
	ctrl, err := lifecycle.NewController(registry, lifecycle.NewMemoryStore(), opts...)
	require.NoError(t, err)
	return ctrl
}

func cartPayload(lines ...map[string]any) map[string]any {
	items := make([]any, len(lines))
	for i, l := range lines {
		items[i] = l
	}
	return map[string]any{"lines": items}
}

func TestOrderLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("empty cart cannot arrange payment", func(t *testing.T) {
		t.Parallel()
		ctrl := newOrderController(t, newFakeStock(nil), nil)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityOrder, ID: "ord-1"}
		_, err := ctrl.Create(ctx, ref, nil)
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventArrangePayment, nil)
		require.Error(t, err)

		var rejected *lifecycle.GuardRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, commerce.ReasonEmptyCart, rejected.Reason)

		e, err := ctrl.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, commerce.OrderAddingItems, e.State)
	})

	t.Run("out of stock keeps the order arranging payment", func(t *testing.T) {
		t.Parallel()
		stock := newFakeStock(map[string]int{"sku-1": 1})
		ctrl := newOrderController(t, stock, nil)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityOrder, ID: "ord-1"}
		_, err := ctrl.Create(ctx, ref, cartPayload(map[string]any{"sku": "sku-1", "quantity": 5}))
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventArrangePayment, nil)
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventAuthorizePayment, nil)
		require.Error(t, err)

		var rejected *lifecycle.GuardRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, commerce.ReasonOutOfStock, rejected.Reason)

		e, err := ctrl.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, commerce.OrderArrangingPayment, e.State)

		history, err := ctrl.History(ctx, ref)
		require.NoError(t, err)
		require.Len(t, history, 2) // committed arrangePayment + rejected authorizePayment
		assert.Equal(t, lifecycle.OutcomeRejected, history[1].Outcome)
	})

	t.Run("cancelled order accepts no further events", func(t *testing.T) {
		t.Parallel()
		ctrl := newOrderController(t, newFakeStock(nil), nil)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityOrder, ID: "ord-1"}
		_, err := ctrl.Create(ctx, ref, cartPayload(map[string]any{"sku": "sku-1", "quantity": 1}))
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventArrangePayment, nil)
		require.NoError(t, err)

		result, err := ctrl.Request(ctx, ref, commerce.EventCancel, nil)
		require.NoError(t, err)
		assert.Equal(t, commerce.OrderCancelled, result.Entity.State)

		_, err = ctrl.Request(ctx, ref, commerce.EventArrangePayment, nil)
		require.Error(t, err)
		assert.True(t, lifecycle.IsInvalidTransition(err))
	})

	t.Run("full happy path to delivered", func(t *testing.T) {
		t.Parallel()
		stock := newFakeStock(map[string]int{"sku-1": 10})
		enqueuer := &recordingEnqueuer{}
		ctrl := newOrderController(t, stock, enqueuer)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityOrder, ID: "ord-1"}
		_, err := ctrl.Create(ctx, ref, cartPayload(map[string]any{"sku": "sku-1", "quantity": 2}))
		require.NoError(t, err)

		for _, event := range []struct {
			event stategraph.Event
			state stategraph.State
		}{
			{commerce.EventArrangePayment, commerce.OrderArrangingPayment},
			{commerce.EventAuthorizePayment, commerce.OrderPaymentAuthorized},
			{commerce.EventSettlePayment, commerce.OrderPaymentSettled},
			{commerce.EventShip, commerce.OrderShipped},
			{commerce.EventDeliver, commerce.OrderDelivered},
		} {
			result, err := ctrl.Request(ctx, ref, event.event, nil)
			require.NoError(t, err, "event %s", event.event)
			assert.Equal(t, event.state, result.Entity.State)
		}

		e, err := ctrl.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, commerce.OrderDelivered, e.State)
		assert.Equal(t, true, e.Payload["stock_checked"]) // guard mutation landed

		// allocate-stock, send-order-confirmation, reindex-entity
		payloads := enqueuer.payloads()
		require.Len(t, payloads, 3)
		assert.IsType(t, commerce.StockAllocationPayload{}, payloads[0])
		assert.IsType(t, commerce.OrderConfirmationPayload{}, payloads[1])
		assert.IsType(t, commerce.ReindexPayload{}, payloads[2])
	})
}

func TestPaymentLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("missing amount rejects authorization", func(t *testing.T) {
		t.Parallel()
		ctrl := newOrderController(t, newFakeStock(nil), nil)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityPayment, ID: "pay-1"}
		_, err := ctrl.Create(ctx, ref, nil)
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventAuthorize, nil)
		require.Error(t, err)

		var rejected *lifecycle.GuardRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, commerce.ReasonInvalidAmount, rejected.Reason)
	})

	t.Run("authorize then settle", func(t *testing.T) {
		t.Parallel()
		ctrl := newOrderController(t, newFakeStock(nil), nil)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityPayment, ID: "pay-1"}
		_, err := ctrl.Create(ctx, ref, map[string]any{"amount": 4999})
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventAuthorize, nil)
		require.NoError(t, err)

		result, err := ctrl.Request(ctx, ref, commerce.EventSettle, nil)
		require.NoError(t, err)
		assert.Equal(t, commerce.PaymentSettled, result.Entity.State)

		_, err = ctrl.Request(ctx, ref, commerce.EventFail, nil)
		assert.True(t, lifecycle.IsInvalidTransition(err)) // settled is terminal
	})

	t.Run("declined is terminal", func(t *testing.T) {
		t.Parallel()
		ctrl := newOrderController(t, newFakeStock(nil), nil)
		ctx := context.Background()

		ref := lifecycle.EntityRef{Type: commerce.EntityPayment, ID: "pay-1"}
		_, err := ctrl.Create(ctx, ref, map[string]any{"amount": 100})
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventDecline, nil)
		require.NoError(t, err)

		_, err = ctrl.Request(ctx, ref, commerce.EventAuthorize, nil)
		assert.True(t, lifecycle.IsInvalidTransition(err))
	})
}

func TestFulfillmentLifecycle(t *testing.T) {
	t.Parallel()

	ctrl := newOrderController(t, newFakeStock(nil), nil)
	ctx := context.Background()

	ref := lifecycle.EntityRef{Type: commerce.EntityFulfillment, ID: "ful-1"}
	_, err := ctrl.Create(ctx, ref, nil)
	require.NoError(t, err)

	_, err = ctrl.Request(ctx, ref, commerce.EventShip, nil)
	require.NoError(t, err)

	// shipped fulfillments cannot be cancelled
	_, err = ctrl.Request(ctx, ref, commerce.EventCancel, nil)
	assert.True(t, lifecycle.IsInvalidTransition(err))

	result, err := ctrl.Request(ctx, ref, commerce.EventDeliver, nil)
	require.NoError(t, err)
	assert.Equal(t, commerce.FulfillmentDelivered, result.Entity.State)
}

func TestGuardRejectionInsideJobHandler(t *testing.T) {
	t.Parallel()

	// A handler that drives a transition and hits a guard veto must report
	// a fatal job outcome: retrying cannot change the guard's decision.
	stock := newFakeStock(map[string]int{})
	ctrl := newOrderController(t, stock, nil)
	ctx := context.Background()

	ref := lifecycle.EntityRef{Type: commerce.EntityOrder, ID: "ord-1"}
	_, err := ctrl.Create(ctx, ref, cartPayload(map[string]any{"sku": "sku-1", "quantity": 1}))
	require.NoError(t, err)
	_, err = ctrl.Request(ctx, ref, commerce.EventArrangePayment, nil)
	require.NoError(t, err)

	_, err = ctrl.Request(ctx, ref, commerce.EventAuthorizePayment, nil)
	require.Error(t, err)

	wrapped := lifecycle.WrapJobError(err)
	assert.True(t, queue.IsFatal(wrapped))

	wrapped = lifecycle.WrapJobError(errors.New("gateway timeout"))
	assert.False(t, queue.IsFatal(wrapped))
}
