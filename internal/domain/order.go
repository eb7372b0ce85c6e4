package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 订单方向
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideClose Side = "CLOSE" // 平仓
)

// Valid 是否为支持的方向
func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell, SideClose:
		return true
	}
	return false
}

// ParseSide 解析方向（大小写不敏感）
func ParseSide(s string) Side {
	return Side(strings.ToUpper(strings.TrimSpace(s)))
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"     // 挂单中
	OrderStatusPartial  OrderStatus = "partial"  // 部分成交
	OrderStatusFilled   OrderStatus = "filled"   // 已成交
	OrderStatusCanceled OrderStatus = "canceled" // 已取消
	OrderStatusUnknown  OrderStatus = "unknown"
)

// Order 主账户或从账户上的一个挂单
type Order struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"side"`
	Type           OrderType        `json:"type"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	StopPrice      *decimal.Decimal `json:"stop_price,omitempty"`
	ReduceOnly     bool             `json:"reduce_only"`
	Status         OrderStatus      `json:"status"`
	FilledQuantity decimal.Decimal  `json:"filled_quantity"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Equal 逐字段比较，任意字段不同即视为订单被修改
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID &&
		o.Symbol == other.Symbol &&
		o.Side == other.Side &&
		o.Type == other.Type &&
		o.Quantity.Equal(other.Quantity) &&
		decimalPtrEqual(o.Price, other.Price) &&
		decimalPtrEqual(o.StopPrice, other.StopPrice) &&
		o.ReduceOnly == other.ReduceOnly &&
		o.Status == other.Status &&
		o.FilledQuantity.Equal(other.FilledQuantity) &&
		o.UpdatedAt.Equal(other.UpdatedAt)
}

// Notional 名义价值 = 数量 × 价格；没有价格时返回 0
func (o Order) Notional(fallback *decimal.Decimal) decimal.Decimal {
	price := o.Price
	if price == nil {
		price = fallback
	}
	if price == nil {
		return decimal.Zero
	}
	return o.Quantity.Mul(*price)
}

// IsFinalStatus 是否为最终状态
func (o Order) IsFinalStatus() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCanceled
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// DecimalPtr 便捷构造
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
