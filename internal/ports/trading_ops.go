package ports

import (
	"context"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/shopspring/decimal"
)

// Small capability interfaces shared across layers (monitor/execution/copytrade).

// OrderLister lists the open orders of one account. Empty symbol means all symbols.
type OrderLister interface {
	ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error)
}

type PlaceOrderRequest struct {
	Symbol        string
	Side          domain.Side
	Type          domain.OrderType
	Quantity      decimal.Decimal
	Price         *decimal.Decimal
	StopPrice     *decimal.Decimal
	ReduceOnly    bool
	ClientOrderID string
}

type PlaceOrderResult struct {
	OrderID string
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
}

type OrderCanceler interface {
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

type ModifyOrderRequest struct {
	OrderID  string
	Symbol   string
	Quantity *decimal.Decimal
	Price    *decimal.Decimal
}

type OrderModifier interface {
	ModifyOrder(ctx context.Context, req ModifyOrderRequest) error
}

// ExchangeClient is everything the replication core needs from one account.
type ExchangeClient interface {
	OrderLister
	OrderPlacer
	OrderCanceler
	OrderModifier
}

// OrderStatusGetter is optional; used to tell a fill apart from a cancel once an
// order disappears from the open-order list.
type OrderStatusGetter interface {
	GetOrder(ctx context.Context, orderID, symbol string) (domain.Order, error)
}

// MarkPriceGetter is optional market context for market orders without a price.
type MarkPriceGetter interface {
	MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
