package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOrderEqual(t *testing.T) {
	base := Order{ID: "1", Symbol: "BTC_USDT", Side: SideBuy, Type: OrderTypeLimit, Quantity: dec("1.0"), Price: DecimalPtr(dec("100"))}

	same := base
	same.Quantity = dec("1") // 数值相等即可
	same.Price = DecimalPtr(dec("100.00"))
	assert.True(t, base.Equal(same))

	moved := base
	moved.Price = DecimalPtr(dec("101"))
	assert.False(t, base.Equal(moved))

	noPrice := base
	noPrice.Price = nil
	assert.False(t, base.Equal(noPrice))

	filled := base
	filled.FilledQuantity = dec("0.5")
	assert.False(t, base.Equal(filled))
}

func TestNotional(t *testing.T) {
	o := Order{Quantity: dec("2")}
	assert.True(t, o.Notional(nil).IsZero())
	assert.Equal(t, "30", o.Notional(DecimalPtr(dec("15"))).String())

	o.Price = DecimalPtr(dec("10"))
	assert.Equal(t, "20", o.Notional(DecimalPtr(dec("15"))).String())
}

func TestDiffOrders(t *testing.T) {
	prev := Order{ID: "1", Quantity: dec("1"), Price: DecimalPtr(dec("100"))}

	next := prev
	next.FilledQuantity = dec("0.3")
	next.Status = OrderStatusPartial
	assert.True(t, DiffOrders(prev, next).Empty())

	next.Quantity = dec("2")
	ch := DiffOrders(prev, next)
	require.NotNil(t, ch.Quantity)
	assert.Equal(t, "2", ch.Quantity.String())
	assert.Nil(t, ch.Price)

	next.Price = DecimalPtr(dec("99"))
	ch = DiffOrders(prev, next)
	require.NotNil(t, ch.Price)
	assert.Equal(t, "99", ch.Price.String())
}

func TestReplicationResult(t *testing.T) {
	r := ReplicationResult{
		"b": {Account: "b", OK: false, Err: "boom"},
		"a": {Account: "a", OK: true},
		"c": {Account: "c", OK: false},
	}
	assert.Equal(t, 3, r.Total())
	assert.Equal(t, 1, r.SuccessCount())
	assert.Equal(t, []string{"b", "c"}, r.Failed())
	assert.Equal(t, "a", r.Outcomes()[0].Account)
}

func TestSideValid(t *testing.T) {
	assert.True(t, ParseSide(" buy").Valid())
	assert.True(t, SideClose.Valid())
	assert.False(t, Side("HOLD").Valid())
}
