package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/copytrade/internal/domain"
	"github.com/betbot/copytrade/internal/ports"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sig(primary string) domain.Signal {
	price := decimal.RequireFromString("100.5")
	return domain.Signal{
		TraderID: 1, PrimaryOrderID: primary, Symbol: "BTC_USDT", Side: domain.SideBuy,
		OrderType: domain.OrderTypeLimit, Quantity: decimal.RequireFromString("2"), Price: &price,
	}
}

func TestRecordPlaceCreatesLinks(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	ok, err := l.IsReplicated(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	err = l.Record(ctx, ports.Record{
		Action: domain.ActionPlace,
		Signal: sig("p1"),
		Result: domain.ReplicationResult{
			"alice": {Account: "alice", OK: true, OrderID: "s-a", Quantity: decimal.RequireFromString("1")},
			"bob":   {Account: "bob", OK: false, Err: "rejected"},
		},
		Recorded: time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	ok, err = l.IsReplicated(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	id, found, err := l.SecondaryOrderID(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "s-a", id)

	_, found, err = l.SecondaryOrderID(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordCancelRemovesLinks(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, ports.Record{
		Action: domain.ActionPlace, Signal: sig("p2"),
		Result: domain.ReplicationResult{"alice": {Account: "alice", OK: true, OrderID: "s-a"}},
	}))
	require.NoError(t, l.Record(ctx, ports.Record{
		Action: domain.ActionCancel, Signal: sig("p2"),
		Result: domain.ReplicationResult{"alice": {Account: "alice", OK: true, OrderID: "s-a"}},
	}))

	_, found, err := l.SecondaryOrderID(ctx, "alice", "p2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecentNewestFirstWithOutcomes(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, l.Record(ctx, ports.Record{
			Action: domain.ActionPlace, Signal: sig(p),
			Result: domain.ReplicationResult{
				"x": {Account: "x", OK: true, OrderID: "sx-" + p, Quantity: decimal.NewFromInt(2)},
				"y": {Account: "y", OK: false, Err: "boom"},
			},
		}))
	}

	recent, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].PrimaryOrderID)
	assert.Equal(t, "b", recent[1].PrimaryOrderID)
	assert.Equal(t, 1, recent[0].SuccessCount)
	assert.Equal(t, 2, recent[0].Total)
	assert.Equal(t, domain.ActionPlace, recent[0].Action)

	require.Len(t, recent[0].Outcomes, 2)
	assert.Equal(t, "x", recent[0].Outcomes[0].Account)
	assert.Equal(t, "sx-c", recent[0].Outcomes[0].OrderID)
	assert.Equal(t, "2", recent[0].Outcomes[0].Quantity.String())
	assert.Equal(t, "boom", recent[0].Outcomes[1].Err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(context.Background(), ports.Record{
		Action: domain.ActionPlace, Signal: sig("keep"),
		Result: domain.ReplicationResult{"a": {Account: "a", OK: true, OrderID: "s"}},
	}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	ok, err := l.IsReplicated(context.Background(), "keep")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
