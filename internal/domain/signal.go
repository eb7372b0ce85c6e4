package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionKind 复制动作
type ActionKind string

const (
	ActionPlace  ActionKind = "place"
	ActionModify ActionKind = "modify"
	ActionCancel ActionKind = "cancel"
)

// Signal 决策层认可的、可执行的复制指令
// 数量为主账户原始数量，倍数由复制引擎统一施加
type Signal struct {
	TraderID       int
	PrimaryOrderID string
	Symbol         string
	Side           Side
	OrderType      OrderType
	Quantity       decimal.Decimal
	Price          *decimal.Decimal
	StopPrice      *decimal.Decimal
	ReduceOnly     bool
	Timestamp      time.Time
}

// SignalFromOrder 按订单原样构造信号
func SignalFromOrder(traderID int, o Order, ts time.Time) Signal {
	return Signal{
		TraderID:       traderID,
		PrimaryOrderID: o.ID,
		Symbol:         o.Symbol,
		Side:           o.Side,
		OrderType:      o.Type,
		Quantity:       o.Quantity,
		Price:          o.Price,
		StopPrice:      o.StopPrice,
		ReduceOnly:     o.ReduceOnly,
		Timestamp:      ts,
	}
}

// OrderChanges 改单内容；nil 字段表示不修改
type OrderChanges struct {
	Quantity *decimal.Decimal
	Price    *decimal.Decimal
}

// Empty 是否没有任何修改
func (c OrderChanges) Empty() bool {
	return c.Quantity == nil && c.Price == nil
}

// DiffOrders 计算需要同步的改单内容（只关注数量与价格）
func DiffOrders(prev, next Order) OrderChanges {
	var ch OrderChanges
	if !prev.Quantity.Equal(next.Quantity) {
		q := next.Quantity
		ch.Quantity = &q
	}
	if !decimalPtrEqual(prev.Price, next.Price) && next.Price != nil {
		p := *next.Price
		ch.Price = &p
	}
	return ch
}
