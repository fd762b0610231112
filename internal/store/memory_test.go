package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/spotarb/internal/market"
)

func TestMemory_InsertAndListTrades(t *testing.T) {
	m := NewMemory()
	rec := TradeRecord{ID: "t1", Market: "BTC/USDT"}
	require.NoError(t, m.InsertTrade(context.Background(), rec))

	got := m.Trades()
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	got[0].ID = "mutated"
	assert.Equal(t, "t1", m.Trades()[0].ID, "Trades must return a copy")
}

func TestMemory_BalanceRoundTrip(t *testing.T) {
	m := NewMemory()
	bal := map[market.Asset]decimal.Decimal{"BTC": decimal.RequireFromString("2")}
	require.NoError(t, m.WriteBalance(context.Background(), "venA", bal))

	got, err := m.ReadBalance(context.Background(), "venA")
	require.NoError(t, err)
	assert.True(t, got["BTC"].Equal(decimal.RequireFromString("2")))

	got["BTC"] = decimal.RequireFromString("99")
	fresh, _ := m.ReadBalance(context.Background(), "venA")
	assert.True(t, fresh["BTC"].Equal(decimal.RequireFromString("2")), "ReadBalance must return a copy")
}

func TestMemory_UpsertMarketPair_SetsFirstRunOnce(t *testing.T) {
	m := NewMemory()
	first := time.Unix(1000, 0)
	second := time.Unix(2000, 0)

	require.NoError(t, m.UpsertMarketPair(context.Background(), "VENA_VENB_BTC-USDT", first))
	require.NoError(t, m.UpsertMarketPair(context.Background(), "VENA_VENB_BTC-USDT", second))

	doc := m.marketPairs["VENA_VENB_BTC-USDT"]
	assert.True(t, doc.FirstRun.Equal(first))
	assert.True(t, doc.LastRun.Equal(second))
}
