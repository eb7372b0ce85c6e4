package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/copytrade/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func input(o domain.Order) Input {
	return Input{Event: domain.ChangeEvent{Kind: domain.EventPlaced, Order: o}, Timestamp: time.Unix(100, 0)}
}

func limit(symbol string, qty, price string) domain.Order {
	return domain.Order{
		ID: "p1", Symbol: symbol, Side: domain.SideBuy, Type: domain.OrderTypeLimit,
		Quantity: d(qty), Price: domain.DecimalPtr(d(price)), StopPrice: domain.DecimalPtr(d("90")), ReduceOnly: true,
	}
}

func TestUnfilteredCopiesOrderFields(t *testing.T) {
	s, err := New("simple", Params{TraderID: 7})
	require.NoError(t, err)

	sig, err := s.Analyze(context.Background(), input(limit("BTC_USDT", "0.5", "100")))
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, 7, sig.TraderID)
	assert.Equal(t, "p1", sig.PrimaryOrderID)
	assert.Equal(t, "BTC_USDT", sig.Symbol)
	assert.Equal(t, domain.SideBuy, sig.Side)
	assert.Equal(t, domain.OrderTypeLimit, sig.OrderType)
	assert.Equal(t, "0.5", sig.Quantity.String())
	assert.Equal(t, "100", sig.Price.String())
	assert.Equal(t, "90", sig.StopPrice.String())
	assert.True(t, sig.ReduceOnly)
	assert.Equal(t, time.Unix(100, 0), sig.Timestamp)
	assert.Contains(t, s.Name(), "7")
}

func TestValidationRejects(t *testing.T) {
	for _, name := range []string{"simple", "unfiltered", "filtered"} {
		s, err := New(name, Params{})
		require.NoError(t, err)

		cases := map[string]domain.Order{
			"empty symbol":  {Symbol: "", Side: domain.SideBuy, Quantity: d("1")},
			"bad side":      {Symbol: "X", Side: "HOLD", Quantity: d("1")},
			"zero quantity": {Symbol: "X", Side: domain.SideSell, Quantity: d("0")},
			"negative":      {Symbol: "X", Side: domain.SideClose, Quantity: d("-1")},
		}
		for label, o := range cases {
			sig, err := s.Analyze(context.Background(), input(o))
			assert.Nil(t, sig, "%s/%s", name, label)
			assert.True(t, IsRejection(err), "%s/%s: %v", name, label, err)
		}
	}
}

func TestCloseSideAccepted(t *testing.T) {
	s := NewUnfiltered(1)
	o := domain.Order{Symbol: "X", Side: domain.SideClose, Quantity: d("1"), Type: domain.OrderTypeMarket}
	sig, err := s.Analyze(context.Background(), input(o))
	require.NoError(t, err)
	assert.Equal(t, domain.SideClose, sig.Side)
}

func TestFilteredNotional(t *testing.T) {
	s, err := NewFiltered(Params{MinNotional: d("50")})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Analyze(ctx, input(limit("BTC_USDT", "0.4", "100")))
	assert.True(t, IsRejection(err))

	sig, err := s.Analyze(ctx, input(limit("BTC_USDT", "0.5", "100")))
	require.NoError(t, err)
	require.NotNil(t, sig)

	// 市价单没有价格：没有标记价格时按 0 计
	market := domain.Order{Symbol: "BTC_USDT", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: d("1")}
	_, err = s.Analyze(ctx, input(market))
	assert.True(t, IsRejection(err))

	in := input(market)
	in.MarkPrice = domain.DecimalPtr(d("60"))
	sig, err = s.Analyze(ctx, in)
	require.NoError(t, err)
	assert.Nil(t, sig.Price)
}

func TestFilteredAllowAndDenyLists(t *testing.T) {
	s, err := New("filtered", Params{
		AllowedSymbols:  []string{"btc_usdt", "ETH_USDT"},
		ExcludedSymbols: []string{"ETH_USDT"},
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Analyze(ctx, input(limit("BTC_USDT", "1", "1")))
	assert.NoError(t, err)

	_, err = s.Analyze(ctx, input(limit("SOL_USDT", "1", "1")))
	assert.True(t, IsRejection(err))

	// 同时在白名单和黑名单中：黑名单优先
	_, err = s.Analyze(ctx, input(limit("ETH_USDT", "1", "1")))
	require.True(t, IsRejection(err))
	var r *Rejection
	require.True(t, errors.As(err, &r))
	assert.Contains(t, r.Reason, "excluded")
}

func TestFilteredEmptyAllowListAcceptsAll(t *testing.T) {
	s, err := NewFiltered(Params{ExcludedSymbols: []string{"DOGE_USDT"}})
	require.NoError(t, err)
	_, err = s.Analyze(context.Background(), input(limit("ANY_USDT", "1", "1")))
	assert.NoError(t, err)
	_, err = s.Analyze(context.Background(), input(limit("doge_usdt", "1", "1")))
	assert.True(t, IsRejection(err))
}

func TestFactory(t *testing.T) {
	_, err := New("martingale", Params{})
	assert.True(t, errors.Is(err, ErrUnknownStrategy))

	_, err = New("filtered", Params{MinNotional: d("-1")})
	assert.Error(t, err)

	s, err := New(" Filtered ", Params{TraderID: 3})
	require.NoError(t, err)
	assert.Equal(t, "Filtered (trader 3)", s.Name())

	assert.Equal(t, []string{"filtered", "simple", "unfiltered"}, Registered())
	assert.Panics(t, func() { RegisterStrategy("simple", newUnfiltered) })
}

func TestConcurrentAnalyze(t *testing.T) {
	s, err := NewFiltered(Params{MinNotional: d("1"), AllowedSymbols: []string{"BTC_USDT"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Analyze(context.Background(), input(limit("BTC_USDT", "1", "10")))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
