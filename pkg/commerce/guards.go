package commerce

import (
	"context"
	"fmt"

	"github.com/storekit/storekit/pkg/lifecycle"
)

// Rejection reasons returned by the built-in guards. They are
// machine-readable so callers and job handlers can branch on them.
const (
	ReasonEmptyCart     = "EMPTY_CART"
	ReasonOutOfStock    = "OUT_OF_STOCK"
	ReasonInvalidAmount = "INVALID_AMOUNT"
	ReasonStockCheck    = "STOCK_CHECK_FAILED"
)

// OrderLine is one cart line as stored in the order payload under "lines".
type OrderLine struct {
	SKU      string
	Quantity int
}

// StockChecker answers whether the requested quantity of a SKU is on hand.
// Implementations must be fast; the guard runs inside the transition's
// guard timeout.
type StockChecker interface {
	Available(ctx context.Context, sku string, quantity int) (bool, error)
}

// StockCheckerFunc adapts a function to the StockChecker interface.
type StockCheckerFunc func(ctx context.Context, sku string, quantity int) (bool, error)

func (f StockCheckerFunc) Available(ctx context.Context, sku string, quantity int) (bool, error) {
	return f(ctx, sku, quantity)
}

// NonEmptyCartGuard rejects arranging payment for an order with no lines.
func NonEmptyCartGuard() lifecycle.Guard {
	return lifecycle.NewGuard("non-empty-cart", func(ctx context.Context, gc lifecycle.GuardContext) lifecycle.Decision {
		lines, err := orderLines(gc.Entity.Payload)
		if err != nil || len(lines) == 0 {
			return lifecycle.Reject(ReasonEmptyCart)
		}
		return lifecycle.Approve()
	})
}

// StockAvailabilityGuard rejects payment capture when any order line cannot
// be covered by on-hand stock. On approval it marks the payload so the
// stock-allocation job knows the reservation was checked at capture time.
func StockAvailabilityGuard(stock StockChecker) lifecycle.Guard {
	return lifecycle.NewGuard("stock-availability", func(ctx context.Context, gc lifecycle.GuardContext) lifecycle.Decision {
		lines, err := orderLines(gc.Entity.Payload)
		if err != nil {
			return lifecycle.Reject(ReasonStockCheck)
		}
		for _, line := range lines {
			ok, err := stock.Available(ctx, line.SKU, line.Quantity)
			if err != nil {
				return lifecycle.Reject(ReasonStockCheck)
			}
			if !ok {
				return lifecycle.Reject(ReasonOutOfStock)
			}
		}
		return lifecycle.ApproveWithMutation(map[string]any{"stock_checked": true})
	})
}

// PaymentAmountGuard rejects authorizing or settling a payment whose
// payload amount is missing or not positive.
func PaymentAmountGuard() lifecycle.Guard {
	return lifecycle.NewGuard("payment-amount", func(ctx context.Context, gc lifecycle.GuardContext) lifecycle.Decision {
		amount, ok := intFromPayload(gc.Entity.Payload["amount"])
		if !ok || amount <= 0 {
			return lifecycle.Reject(ReasonInvalidAmount)
		}
		return lifecycle.Approve()
	})
}

// orderLines decodes the "lines" payload key. Payloads round-trip through
// JSON, so quantities may arrive as float64 rather than int.
func orderLines(payload map[string]any) ([]OrderLine, error) {
	raw, ok := payload["lines"]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("payload lines is %T, want a list", raw)
	}

	lines := make([]OrderLine, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("payload line %d is %T, want an object", i, item)
		}
		sku, _ := m["sku"].(string)
		if sku == "" {
			return nil, fmt.Errorf("payload line %d has no sku", i)
		}
		qty, ok := intFromPayload(m["quantity"])
		if !ok || qty <= 0 {
			return nil, fmt.Errorf("payload line %d has invalid quantity", i)
		}
		lines = append(lines, OrderLine{SKU: sku, Quantity: qty})
	}
	return lines, nil
}

func intFromPayload(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
