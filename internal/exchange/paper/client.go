package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
)

var log = logrus.WithField("component", "paper")

// ErrOrderNotFound 订单不存在（与真实交易所撤不存在订单的行为一致）
var ErrOrderNotFound = fmt.Errorf("paper: order not found")

// Client 纸交易客户端：不发任何网络请求，只在内存里记账并打印日志
type Client struct {
	name string

	mu     sync.Mutex
	orders map[string]domain.Order
	now    func() time.Time
}

var _ ports.ExchangeClient = (*Client)(nil)
var _ ports.OrderStatusGetter = (*Client)(nil)

func New(name string) *Client {
	return &Client{
		name:   name,
		orders: make(map[string]domain.Order),
		now:    time.Now,
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Order, 0, len(c.orders))
	for _, o := range c.orders {
		if o.IsFinalStatus() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (ports.PlaceOrderResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.PlaceOrderResult{}, err
	}
	if !req.Quantity.IsPositive() {
		return ports.PlaceOrderResult{}, fmt.Errorf("paper: invalid quantity %s", req.Quantity)
	}
	id := "paper-" + uuid.NewString()
	o := domain.Order{
		ID:         id,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		ReduceOnly: req.ReduceOnly,
		Status:     domain.OrderStatusOpen,
		UpdatedAt:  c.now(),
	}
	// 市价单视为立即成交
	if req.Type == domain.OrderTypeMarket {
		o.Status = domain.OrderStatusFilled
		o.FilledQuantity = req.Quantity
	}

	c.mu.Lock()
	c.orders[id] = o
	c.mu.Unlock()

	log.Infof("📝 [纸交易] %s 下单: %s %s %s qty=%s price=%s reduceOnly=%v id=%s",
		c.name, req.Symbol, req.Side, req.Type, req.Quantity, fmtPrice(req.Price), req.ReduceOnly, id)
	return ports.PlaceOrderResult{OrderID: id}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[orderID]
	if !ok || o.IsFinalStatus() {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o.Status = domain.OrderStatusCanceled
	o.UpdatedAt = c.now()
	c.orders[orderID] = o
	log.Infof("📝 [纸交易] %s 撤单: %s id=%s", c.name, o.Symbol, orderID)
	return nil
}

func (c *Client) ModifyOrder(ctx context.Context, req ports.ModifyOrderRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[req.OrderID]
	if !ok || o.IsFinalStatus() {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, req.OrderID)
	}
	if req.Quantity != nil {
		o.Quantity = *req.Quantity
	}
	if req.Price != nil {
		p := *req.Price
		o.Price = &p
	}
	o.UpdatedAt = c.now()
	c.orders[req.OrderID] = o
	log.Infof("📝 [纸交易] %s 改单: id=%s qty=%s price=%s", c.name, req.OrderID, o.Quantity, fmtPrice(o.Price))
	return nil
}

func (c *Client) GetOrder(ctx context.Context, orderID, symbol string) (domain.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o, nil
}

// Fill 模拟成交（测试与演示用）
func (c *Client) Fill(orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	o.Status = domain.OrderStatusFilled
	o.FilledQuantity = o.Quantity
	o.UpdatedAt = c.now()
	c.orders[orderID] = o
	return nil
}

func fmtPrice(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.String()
}
