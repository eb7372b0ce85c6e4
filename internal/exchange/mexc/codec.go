package mexc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/copytrade/internal/domain"
)

// MEXC 合约方向：1 开多 2 平空 3 开空 4 平多
const (
	sideOpenLong   = 1
	sideCloseShort = 2
	sideOpenShort  = 3
	sideCloseLong  = 4
)

// 普通委托类型
const (
	orderTypeLimit  = 1
	orderTypeMarket = 5
)

// 计划委托触发方向：1 价格 >= 触发价，2 价格 <= 触发价
const (
	triggerGTE = 1
	triggerLTE = 2
)

// 计划委托 ID 前缀，用于区分撤单接口
const planPrefix = "plan:"

// flexID 兼容数字与字符串两种 ID 表示
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			OrderID flexID `json:"orderId"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*f = obj.OrderID
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// wireOrder 普通委托
type wireOrder struct {
	OrderID    flexID          `json:"orderId"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Vol        decimal.Decimal `json:"vol"`
	DealVol    decimal.Decimal `json:"dealVol"`
	Side       int             `json:"side"`
	OrderType  int             `json:"orderType"`
	State      int             `json:"state"`
	UpdateTime int64           `json:"updateTime"`
}

// wirePlanOrder 计划委托（止损/止盈）
type wirePlanOrder struct {
	ID           flexID          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         int             `json:"side"`
	Vol          decimal.Decimal `json:"vol"`
	Price        decimal.Decimal `json:"price"`
	TriggerPrice decimal.Decimal `json:"triggerPrice"`
	TriggerType  int             `json:"triggerType"`
	OrderType    int             `json:"orderType"`
	State        int             `json:"state"`
	UpdateTime   int64           `json:"updateTime"`
}

type submitRequest struct {
	Symbol      string      `json:"symbol"`
	Price       json.Number `json:"price"`
	Vol         json.Number `json:"vol"`
	Leverage    int         `json:"leverage,omitempty"`
	Side        int         `json:"side"`
	Type        int         `json:"type"`
	OpenType    int         `json:"openType"`
	ExternalOid string      `json:"externalOid,omitempty"`
}

type planRequest struct {
	Symbol       string      `json:"symbol"`
	Price        json.Number `json:"price"`
	Vol          json.Number `json:"vol"`
	Leverage     int         `json:"leverage,omitempty"`
	Side         int         `json:"side"`
	OpenType     int         `json:"openType"`
	TriggerPrice json.Number `json:"triggerPrice"`
	TriggerType  int         `json:"triggerType"`
	ExecuteCycle int         `json:"executeCycle"`
	OrderType    int         `json:"orderType"`
	Trend        int         `json:"trend"`
}

type changeLimitRequest struct {
	OrderID string      `json:"orderId"`
	Price   json.Number `json:"price"`
	Vol     json.Number `json:"vol"`
}

type planCancelItem struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
}

type fairPrice struct {
	Symbol    string          `json:"symbol"`
	FairPrice decimal.Decimal `json:"fairPrice"`
	Timestamp int64           `json:"timestamp"`
}

// encodeSide 方向 + reduceOnly -> MEXC side
func encodeSide(side domain.Side, reduceOnly bool) (int, error) {
	switch side {
	case domain.SideBuy:
		if reduceOnly {
			return sideCloseShort, nil
		}
		return sideOpenLong, nil
	case domain.SideSell:
		if reduceOnly {
			return sideCloseLong, nil
		}
		return sideOpenShort, nil
	}
	return 0, ErrUnsupportedSide
}

// decodeSide MEXC side -> 方向 + reduceOnly
func decodeSide(s int) (domain.Side, bool) {
	switch s {
	case sideOpenLong:
		return domain.SideBuy, false
	case sideCloseShort:
		return domain.SideBuy, true
	case sideOpenShort:
		return domain.SideSell, false
	case sideCloseLong:
		return domain.SideSell, true
	}
	return domain.Side(strconv.Itoa(s)), false
}

// triggerTypeFor 止损：买单向上突破触发、卖单向下跌破触发；止盈相反
func triggerTypeFor(t domain.OrderType, side domain.Side) int {
	up := side == domain.SideBuy
	if t == domain.OrderTypeTakeProfit {
		up = !up
	}
	if up {
		return triggerGTE
	}
	return triggerLTE
}

func planOrderType(triggerType int, side domain.Side) domain.OrderType {
	up := triggerType == triggerGTE
	if (side == domain.SideBuy) == up {
		return domain.OrderTypeStop
	}
	return domain.OrderTypeTakeProfit
}

// 普通委托状态：1 待报 2 未完成 3 已完成 4 已撤销 5 无效
func decodeState(state int, dealVol decimal.Decimal) domain.OrderStatus {
	switch state {
	case 1, 2:
		if dealVol.IsPositive() {
			return domain.OrderStatusPartial
		}
		return domain.OrderStatusOpen
	case 3:
		return domain.OrderStatusFilled
	case 4, 5:
		return domain.OrderStatusCanceled
	}
	return domain.OrderStatusUnknown
}

// 计划委托状态：1 未触发 2 已撤销 3 已执行 4 已失效 5 执行失败
func decodePlanState(state int) domain.OrderStatus {
	switch state {
	case 1:
		return domain.OrderStatusOpen
	case 3:
		return domain.OrderStatusFilled
	case 2, 4, 5:
		return domain.OrderStatusCanceled
	}
	return domain.OrderStatusUnknown
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (w wireOrder) toDomain() domain.Order {
	side, reduceOnly := decodeSide(w.Side)
	o := domain.Order{
		ID:             string(w.OrderID),
		Symbol:         w.Symbol,
		Side:           side,
		Type:           domain.OrderTypeLimit,
		Quantity:       w.Vol,
		ReduceOnly:     reduceOnly,
		Status:         decodeState(w.State, w.DealVol),
		FilledQuantity: w.DealVol,
		UpdatedAt:      msToTime(w.UpdateTime),
	}
	if w.OrderType == orderTypeMarket {
		o.Type = domain.OrderTypeMarket
	}
	if w.Price.IsPositive() {
		o.Price = domain.DecimalPtr(w.Price)
	}
	return o
}

func (w wirePlanOrder) toDomain() domain.Order {
	side, reduceOnly := decodeSide(w.Side)
	o := domain.Order{
		ID:         planPrefix + string(w.ID),
		Symbol:     w.Symbol,
		Side:       side,
		Type:       planOrderType(w.TriggerType, side),
		Quantity:   w.Vol,
		StopPrice:  domain.DecimalPtr(w.TriggerPrice),
		ReduceOnly: reduceOnly,
		Status:     decodePlanState(w.State),
		UpdatedAt:  msToTime(w.UpdateTime),
	}
	if w.Price.IsPositive() {
		o.Price = domain.DecimalPtr(w.Price)
	}
	return o
}

// num 请求体里的数值按 JSON number 发送
func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func splitPlanID(id string) (string, bool) {
	if strings.HasPrefix(id, planPrefix) {
		return strings.TrimPrefix(id, planPrefix), true
	}
	return id, false
}
