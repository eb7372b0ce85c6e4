package mexc

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
	"github.com/betbot/copytrade/pkg/ratelimit"
)

const (
	pathOpenOrders  = "/api/v1/private/order/list/open_orders/"
	pathSubmit      = "/api/v1/private/order/submit"
	pathCancel      = "/api/v1/private/order/cancel"
	pathChangeLimit = "/api/v1/private/order/change_limit_order"
	pathGetOrder    = "/api/v1/private/order/get/"
	pathPlanList    = "/api/v1/private/planorder/list/orders"
	pathPlanPlace   = "/api/v1/private/planorder/place"
	pathPlanCancel  = "/api/v1/private/planorder/cancel"
	pathFairPrice   = "/api/v1/contract/fair_price/"

	pageSize = "100"

	// 计划委托有效期：2 = 7 天
	planExecuteCycle = 2
	// 触发价类型：1 = 最新价
	planTrendLatest = 1
)

// ListOpenOrders 普通委托 + 未触发的计划委托；symbol 为空表示全部合约
func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	var page []wireOrder
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     pathOpenOrders + symbol,
		endpoint: ratelimit.EndpointOrderQuery,
		query:    map[string]string{"page_num": "1", "page_size": pageSize},
		private:  true,
	}, &page)
	if err != nil {
		return nil, errors.Wrap(err, "list open orders")
	}

	plans, err := c.listPlanOrders(ctx, symbol, "1")
	if err != nil {
		return nil, errors.Wrap(err, "list plan orders")
	}

	out := make([]domain.Order, 0, len(page)+len(plans))
	for _, w := range page {
		o := w.toDomain()
		if o.ID == "" || o.IsFinalStatus() {
			continue
		}
		out = append(out, o)
	}
	for _, o := range plans {
		if o.IsFinalStatus() {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *Client) listPlanOrders(ctx context.Context, symbol, states string) ([]domain.Order, error) {
	query := map[string]string{"states": states, "page_num": "1", "page_size": pageSize}
	if symbol != "" {
		query["symbol"] = symbol
	}
	var page []wirePlanOrder
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     pathPlanList,
		endpoint: ratelimit.EndpointOrderQuery,
		query:    query,
		private:  true,
	}, &page)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(page))
	for _, w := range page {
		if w.ID == "" {
			continue
		}
		out = append(out, w.toDomain())
	}
	return out, nil
}

// PlaceOrder 市价/限价走普通委托，STOP/TAKE_PROFIT 走计划委托
func (c *Client) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (ports.PlaceOrderResult, error) {
	if !req.Quantity.IsPositive() {
		return ports.PlaceOrderResult{}, errors.Errorf("mexc: quantity must be positive, got %s", req.Quantity)
	}
	side, err := encodeSide(req.Side, req.ReduceOnly)
	if err != nil {
		return ports.PlaceOrderResult{}, err
	}

	switch req.Type {
	case domain.OrderTypeMarket, domain.OrderTypeLimit:
		return c.submit(ctx, req, side)
	case domain.OrderTypeStop, domain.OrderTypeTakeProfit:
		return c.placePlan(ctx, req, side)
	}
	return ports.PlaceOrderResult{}, errors.Wrapf(ErrUnsupportedOrderType, "%s", req.Type)
}

func (c *Client) submit(ctx context.Context, req ports.PlaceOrderRequest, side int) (ports.PlaceOrderResult, error) {
	body := submitRequest{
		Symbol:      req.Symbol,
		Price:       num(decimal.Zero),
		Vol:         num(req.Quantity),
		Side:        side,
		Type:        orderTypeMarket,
		OpenType:    c.openType,
		ExternalOid: req.ClientOrderID,
	}
	if c.openType == 1 {
		body.Leverage = c.leverage
	}
	if req.Type == domain.OrderTypeLimit {
		if req.Price == nil || !req.Price.IsPositive() {
			return ports.PlaceOrderResult{}, ErrMissingPrice
		}
		body.Type = orderTypeLimit
	}
	if req.Price != nil {
		body.Price = num(*req.Price)
	}

	var id flexID
	if err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathSubmit,
		endpoint: ratelimit.EndpointOrderSubmit,
		body:     body,
		private:  true,
	}, &id); err != nil {
		return ports.PlaceOrderResult{}, errors.Wrap(err, "submit order")
	}
	if id == "" {
		return ports.PlaceOrderResult{}, ErrEmptyOrderID
	}
	logEntry(c).Debugf("📤 [mexc] 下单成功: %s %s %s qty=%s id=%s", req.Symbol, req.Side, req.Type, req.Quantity, id)
	return ports.PlaceOrderResult{OrderID: string(id)}, nil
}

func (c *Client) placePlan(ctx context.Context, req ports.PlaceOrderRequest, side int) (ports.PlaceOrderResult, error) {
	if req.StopPrice == nil || !req.StopPrice.IsPositive() {
		return ports.PlaceOrderResult{}, errors.Wrap(ErrMissingPrice, "stop price")
	}
	body := planRequest{
		Symbol:       req.Symbol,
		Price:        num(decimal.Zero),
		Vol:          num(req.Quantity),
		Side:         side,
		OpenType:     c.openType,
		TriggerPrice: num(*req.StopPrice),
		TriggerType:  triggerTypeFor(req.Type, req.Side),
		ExecuteCycle: planExecuteCycle,
		OrderType:    orderTypeMarket,
		Trend:        planTrendLatest,
	}
	if c.openType == 1 {
		body.Leverage = c.leverage
	}
	if req.Price != nil && req.Price.IsPositive() {
		body.Price = num(*req.Price)
		body.OrderType = orderTypeLimit
	}

	var id flexID
	if err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathPlanPlace,
		endpoint: ratelimit.EndpointOrderSubmit,
		body:     body,
		private:  true,
	}, &id); err != nil {
		return ports.PlaceOrderResult{}, errors.Wrap(err, "place plan order")
	}
	if id == "" {
		return ports.PlaceOrderResult{}, ErrEmptyOrderID
	}
	return ports.PlaceOrderResult{OrderID: planPrefix + string(id)}, nil
}

type cancelResult struct {
	OrderID   flexID `json:"orderId"`
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
}

func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) error {
	id, plan := splitPlanID(orderID)
	if plan {
		err := c.do(ctx, call{
			method:   http.MethodPost,
			path:     pathPlanCancel,
			endpoint: ratelimit.EndpointOrderCancel,
			body:     []planCancelItem{{Symbol: symbol, OrderID: id}},
			private:  true,
		}, nil)
		return errors.Wrap(err, "cancel plan order")
	}

	var results []cancelResult
	if err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathCancel,
		endpoint: ratelimit.EndpointOrderCancel,
		body:     []string{id},
		private:  true,
	}, &results); err != nil {
		return errors.Wrap(err, "cancel order")
	}
	for _, r := range results {
		if string(r.OrderID) == id && r.ErrorCode != 0 {
			return &APIError{HTTPStatus: http.StatusOK, Code: r.ErrorCode, Message: r.ErrorMsg}
		}
	}
	return nil
}

// ModifyOrder 只支持限价单改价/改量；接口要求价格和数量同时提供，缺的一项取当前值
func (c *Client) ModifyOrder(ctx context.Context, req ports.ModifyOrderRequest) error {
	id, plan := splitPlanID(req.OrderID)
	if plan {
		return ErrModifyNotSupported
	}
	if req.Quantity == nil && req.Price == nil {
		return nil
	}

	price, qty := req.Price, req.Quantity
	if price == nil || qty == nil {
		cur, err := c.GetOrder(ctx, id, req.Symbol)
		if err != nil {
			return errors.Wrap(err, "load order before modify")
		}
		if cur.Type != domain.OrderTypeLimit {
			return ErrModifyNotSupported
		}
		if price == nil {
			price = cur.Price
		}
		if qty == nil {
			qty = &cur.Quantity
		}
	}
	if price == nil {
		return ErrMissingPrice
	}

	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     pathChangeLimit,
		endpoint: ratelimit.EndpointOrderModify,
		body:     changeLimitRequest{OrderID: id, Price: num(*price), Vol: num(*qty)},
		private:  true,
	}, nil)
	return errors.Wrap(err, "change limit order")
}

// GetOrder 查询单个订单；计划委托通过列表查找
func (c *Client) GetOrder(ctx context.Context, orderID, symbol string) (domain.Order, error) {
	id, plan := splitPlanID(orderID)
	if plan {
		all, err := c.listPlanOrders(ctx, symbol, "1,2,3,4,5")
		if err != nil {
			return domain.Order{}, errors.Wrap(err, "get plan order")
		}
		for _, o := range all {
			if o.ID == orderID {
				return o, nil
			}
		}
		return domain.Order{}, errors.Errorf("mexc: plan order %s not found", orderID)
	}

	var w wireOrder
	if err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     pathGetOrder + id,
		endpoint: ratelimit.EndpointOrderQuery,
		private:  true,
	}, &w); err != nil {
		return domain.Order{}, errors.Wrap(err, "get order")
	}
	return w.toDomain(), nil
}

// MarkPrice 合理价格（公开接口，无需签名）
func (c *Client) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var fp fairPrice
	if err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     pathFairPrice + symbol,
		endpoint: ratelimit.EndpointMarket,
	}, &fp); err != nil {
		return decimal.Zero, errors.Wrap(err, "fair price")
	}
	return fp.FairPrice, nil
}
