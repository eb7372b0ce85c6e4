package mexc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
)

type captured struct {
	method string
	path   string
	query  string
	body   string
	header http.Header
}

type fakeMEXC struct {
	mu       sync.Mutex
	requests []captured
	routes   map[string]string // "METHOD path" -> 响应体
}

func (f *fakeMEXC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, captured{
		method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body), header: r.Header.Clone(),
	})
	resp, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"code":404,"message":"no route"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func (f *fakeMEXC) last() captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, routes map[string]string) (*Client, *fakeMEXC) {
	t.Helper()
	fake := &fakeMEXC{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c := New(Config{Name: "alice", BaseURL: srv.URL, APIKey: "key", APISecret: "secret", Timeout: 2 * time.Second})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c, fake
}

func TestSign(t *testing.T) {
	// 固定输入的签名应稳定
	a := sign("secret", "key", "1700000000000", "a=1&b=2")
	b := sign("secret", "key", "1700000000000", "a=1&b=2")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, sign("secret", "key", "1700000000001", "a=1&b=2"))
	assert.Equal(t, "a=1&b=x+y", canonicalQuery(map[string]string{"b": "x y", "a": "1"}))
}

func TestListOpenOrdersMergesPlanOrders(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"GET /api/v1/private/order/list/open_orders/BTC_USDT": `{"success":true,"code":0,"data":[
			{"orderId":"101","symbol":"BTC_USDT","price":50000.5,"vol":3,"dealVol":1,"side":1,"orderType":1,"state":2,"updateTime":1700000000000},
			{"orderId":102,"symbol":"BTC_USDT","price":0,"vol":1,"dealVol":0,"side":4,"orderType":5,"state":3}
		]}`,
		"GET /api/v1/private/planorder/list/orders": `{"success":true,"code":0,"data":[
			{"id":"9","symbol":"BTC_USDT","side":4,"vol":2,"price":0,"triggerPrice":48000,"triggerType":2,"orderType":5,"state":1}
		]}`,
	})

	orders, err := c.ListOpenOrders(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	o := orders[0]
	assert.Equal(t, "101", o.ID)
	assert.Equal(t, domain.SideBuy, o.Side)
	assert.Equal(t, domain.OrderTypeLimit, o.Type)
	assert.Equal(t, domain.OrderStatusPartial, o.Status)
	assert.Equal(t, "3", o.Quantity.String())
	require.NotNil(t, o.Price)
	assert.Equal(t, "50000.5", o.Price.String())

	plan := orders[1]
	assert.Equal(t, "plan:9", plan.ID)
	assert.Equal(t, domain.SideSell, plan.Side)
	assert.True(t, plan.ReduceOnly)
	assert.Equal(t, domain.OrderTypeStop, plan.Type)
	require.NotNil(t, plan.StopPrice)
	assert.Equal(t, "48000", plan.StopPrice.String())

	req := fake.last()
	assert.Equal(t, "key", req.header.Get("ApiKey"))
	assert.Equal(t, "1700000000000", req.header.Get("Request-Time"))
	assert.Equal(t, sign("secret", "key", "1700000000000", req.query), req.header.Get("Signature"))
}

func TestPlaceLimitOrderBody(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"POST /api/v1/private/order/submit": `{"success":true,"code":0,"data":"777"}`,
	})
	price := decimal.RequireFromString("100.25")
	res, err := c.PlaceOrder(context.Background(), ports.PlaceOrderRequest{
		Symbol: "ETH_USDT", Side: domain.SideSell, Type: domain.OrderTypeLimit,
		Quantity: decimal.RequireFromString("1.5"), Price: &price, ClientOrderID: "cid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "777", res.OrderID)

	req := fake.last()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.body), &body))
	assert.Equal(t, "ETH_USDT", body["symbol"])
	assert.Equal(t, 100.25, body["price"])
	assert.Equal(t, 1.5, body["vol"])
	assert.Equal(t, float64(sideOpenShort), body["side"])
	assert.Equal(t, float64(orderTypeLimit), body["type"])
	assert.Equal(t, float64(2), body["openType"])
	assert.Equal(t, "cid-1", body["externalOid"])
	assert.Equal(t, sign("secret", "key", "1700000000000", req.body), req.header.Get("Signature"))
}

func TestPlaceOrderValidation(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()

	_, err := c.PlaceOrder(ctx, ports.PlaceOrderRequest{Symbol: "X", Side: domain.SideBuy, Type: domain.OrderTypeLimit, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrMissingPrice)

	_, err = c.PlaceOrder(ctx, ports.PlaceOrderRequest{Symbol: "X", Side: domain.SideClose, Type: domain.OrderTypeMarket, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrUnsupportedSide)

	_, err = c.PlaceOrder(ctx, ports.PlaceOrderRequest{Symbol: "X", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: decimal.Zero})
	assert.Error(t, err)
}

func TestPlaceStopOrderUsesPlanEndpoint(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"POST /api/v1/private/planorder/place": `{"success":true,"code":0,"data":55}`,
	})
	stop := decimal.NewFromInt(51000)
	res, err := c.PlaceOrder(context.Background(), ports.PlaceOrderRequest{
		Symbol: "BTC_USDT", Side: domain.SideBuy, Type: domain.OrderTypeStop,
		Quantity: decimal.NewFromInt(1), StopPrice: &stop,
	})
	require.NoError(t, err)
	assert.Equal(t, "plan:55", res.OrderID)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(fake.last().body), &body))
	assert.Equal(t, float64(triggerGTE), body["triggerType"])
	assert.Equal(t, float64(orderTypeMarket), body["orderType"])
}

func TestCancelOrderReportsPerOrderError(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"POST /api/v1/private/order/cancel": `{"success":true,"code":0,"data":[{"orderId":"5","errorCode":2040,"errorMsg":"order not exist"}]}`,
	})
	err := c.CancelOrder(context.Background(), "5", "BTC_USDT")
	require.Error(t, err)
	assert.True(t, IsOrderNotFound(err))
	assert.JSONEq(t, `["5"]`, fake.last().body)
}

func TestCancelPlanOrder(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"POST /api/v1/private/planorder/cancel": `{"success":true,"code":0}`,
	})
	require.NoError(t, c.CancelOrder(context.Background(), "plan:9", "BTC_USDT"))
	assert.JSONEq(t, `[{"symbol":"BTC_USDT","orderId":"9"}]`, fake.last().body)
}

func TestModifyFillsMissingFieldsFromCurrentOrder(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"GET /api/v1/private/order/get/42":              `{"success":true,"code":0,"data":{"orderId":"42","symbol":"BTC_USDT","price":100,"vol":2,"side":1,"orderType":1,"state":2}}`,
		"POST /api/v1/private/order/change_limit_order": `{"success":true,"code":0}`,
	})
	qty := decimal.NewFromInt(5)
	err := c.ModifyOrder(context.Background(), ports.ModifyOrderRequest{OrderID: "42", Symbol: "BTC_USDT", Quantity: &qty})
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"42","price":100,"vol":5}`, fake.last().body)

	assert.ErrorIs(t, c.ModifyOrder(context.Background(), ports.ModifyOrderRequest{OrderID: "plan:1", Quantity: &qty}), ErrModifyNotSupported)
}

func TestAPIErrorEnvelope(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"GET /api/v1/private/order/get/1": `{"success":false,"code":602,"message":"Signature verification failed"}`,
	})
	_, err := c.GetOrder(context.Background(), "1", "BTC_USDT")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 602, apiErr.Code)
	assert.Contains(t, err.Error(), "Signature verification failed")
}

func TestMarkPriceIsPublic(t *testing.T) {
	c, fake := newTestClient(t, map[string]string{
		"GET /api/v1/contract/fair_price/BTC_USDT": `{"success":true,"code":0,"data":{"symbol":"BTC_USDT","fairPrice":50123.4,"timestamp":1700000000000}}`,
	})
	p, err := c.MarkPrice(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, "50123.4", p.String())
	assert.Empty(t, fake.last().header.Get("Signature"))
}
