package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Second)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1, 0)
	c.Set("b", 2, 3*time.Second)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestInMemoryCacheLazyCleanup(t *testing.T) {
	c := NewInMemoryCache[int, int](time.Second)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }
	for i := 0; i < 100; i++ {
		c.Set(i, i, 0)
	}
	now = now.Add(2 * time.Second)
	for i := 100; i < 128; i++ {
		c.Set(i, i, 0)
	}
	assert.Equal(t, 28, c.Size())
}

func TestPriceCacheGetOrLoad(t *testing.T) {
	calls := 0
	pc := NewPriceCache(time.Minute, func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		calls++
		if symbol == "BAD" {
			return decimal.Zero, errors.New("no such symbol")
		}
		return decimal.NewFromInt(42), nil
	})
	ctx := context.Background()

	p, err := pc.GetOrLoad(ctx, "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, "42", p.String())
	_, err = pc.GetOrLoad(ctx, "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = pc.GetOrLoad(ctx, "BAD")
	assert.Error(t, err)
	_, ok := pc.Get("BAD")
	assert.False(t, ok)
}

func TestPriceCacheWithoutLoader(t *testing.T) {
	pc := NewPriceCache(0, nil)
	_, err := pc.GetOrLoad(context.Background(), "X")
	assert.ErrorIs(t, err, ErrNoLoader)

	pc.Set("X", decimal.NewFromInt(1))
	p, err := pc.GetOrLoad(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "1", p.String())
}
