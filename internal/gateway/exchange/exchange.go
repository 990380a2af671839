package exchange

import "context"

// Gateway is the capability set the execution core needs from the venue.
// Implementations translate venue errors into *GatewayError so callers can
// branch on code/message without knowing the SDK.
type Gateway interface {
	Name() string

	// SetLeverage returns the effective leverage after the change.
	SetLeverage(ctx context.Context, symbol string, leverage int) (int, error)

	// SubmitLimitOrder places a good-til-cancelled limit order and returns the
	// venue order id. Quantity and price are pre-formatted wire strings.
	SubmitLimitOrder(ctx context.Context, req LimitOrderRequest) (int64, error)

	GetOrderStatus(ctx context.Context, symbol string, orderID int64) (OrderUpdate, error)

	// SubmitConditionalOrder places a trigger order (take-profit or stop) and
	// returns its id.
	SubmitConditionalOrder(ctx context.Context, req ConditionalOrderRequest) (int64, error)

	ListOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)

	ListOpenConditionalOrders(ctx context.Context, symbol string) ([]ConditionalOrder, error)

	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	CancelConditionalOrder(ctx context.Context, symbol string, algoID int64) error

	// GetPositionSize returns the signed position size for the pair.
	GetPositionSize(ctx context.Context, symbol string) (float64, error)
}
