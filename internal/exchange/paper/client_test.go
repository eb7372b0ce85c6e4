package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
)

func TestPaperLifecycle(t *testing.T) {
	ctx := context.Background()
	c := New("demo")
	price := decimal.NewFromInt(100)

	res, err := c.PlaceOrder(ctx, ports.PlaceOrderRequest{
		Symbol: "BTC_USDT", Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Quantity: decimal.NewFromInt(2), Price: &price,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)

	open, err := c.ListOpenOrders(ctx, "BTC_USDT")
	require.NoError(t, err)
	require.Len(t, open, 1)

	newQty := decimal.NewFromInt(3)
	require.NoError(t, c.ModifyOrder(ctx, ports.ModifyOrderRequest{OrderID: res.OrderID, Quantity: &newQty}))
	o, err := c.GetOrder(ctx, res.OrderID, "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, "3", o.Quantity.String())

	require.NoError(t, c.CancelOrder(ctx, res.OrderID, "BTC_USDT"))
	err = c.CancelOrder(ctx, res.OrderID, "BTC_USDT")
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	open, err = c.ListOpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestPaperMarketOrderFillsImmediately(t *testing.T) {
	ctx := context.Background()
	c := New("demo")
	res, err := c.PlaceOrder(ctx, ports.PlaceOrderRequest{Symbol: "ETH_USDT", Side: domain.SideSell, Type: domain.OrderTypeMarket, Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)

	o, err := c.GetOrder(ctx, res.OrderID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, o.Status)

	_, err = c.PlaceOrder(ctx, ports.PlaceOrderRequest{Symbol: "ETH_USDT", Quantity: decimal.Zero})
	require.Error(t, err)
}
