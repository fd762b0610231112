package balance_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/balance"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeFetcher struct {
	bal map[market.Asset]decimal.Decimal
	err *adapter.Error
}

func (f *fakeFetcher) FetchBalance(_ context.Context) (map[market.Asset]decimal.Decimal, *adapter.Error) {
	return f.bal, f.err
}

type fakeStore struct {
	written map[string]map[market.Asset]decimal.Decimal
	read    map[string]map[market.Asset]decimal.Decimal
	history []store.BalanceHistoryEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{written: map[string]map[market.Asset]decimal.Decimal{}, read: map[string]map[market.Asset]decimal.Decimal{}}
}

func (s *fakeStore) WriteBalance(_ context.Context, venue string, balances map[market.Asset]decimal.Decimal) error {
	s.written[venue] = balances
	return nil
}

func (s *fakeStore) ReadBalance(_ context.Context, venue string) (map[market.Asset]decimal.Decimal, error) {
	return s.read[venue], nil
}

func (s *fakeStore) AppendBalanceHistory(_ context.Context, entry store.BalanceHistoryEntry) error {
	s.history = append(s.history, entry)
	return nil
}

func TestCache_GetUnknownVenue(t *testing.T) {
	c := balance.NewCache([]string{"venA"})
	_, ok := c.Get("venB", "BTC")
	assert.False(t, ok)
}

func TestCache_RefreshFromVenue_WritesThrough(t *testing.T) {
	c := balance.NewCache([]string{"venA"})
	fetcher := &fakeFetcher{bal: map[market.Asset]decimal.Decimal{"BTC": d("1.5")}}
	store := newFakeStore()

	require.NoError(t, c.RefreshFromVenue(context.Background(), "venA", fetcher, store))

	got, ok := c.Get("venA", "BTC")
	require.True(t, ok)
	assert.True(t, got.Equal(d("1.5")))
	assert.True(t, store.written["venA"]["BTC"].Equal(d("1.5")))

	require.Len(t, store.history, 1)
	assert.Equal(t, "venA", store.history[0].Venue)
	assert.Equal(t, market.Asset("BTC"), store.history[0].Asset)
	assert.True(t, store.history[0].Amount.Equal(d("1.5")))
}

func TestCache_RefreshFromStore(t *testing.T) {
	c := balance.NewCache([]string{"venA"})
	store := newFakeStore()
	store.read["venA"] = map[market.Asset]decimal.Decimal{"USDT": d("1000")}

	require.NoError(t, c.RefreshFromStore(context.Background(), "venA", store))

	got, ok := c.Get("venA", "USDT")
	require.True(t, ok)
	assert.True(t, got.Equal(d("1000")))
}

func TestCache_DebitCredit(t *testing.T) {
	c := balance.NewCache([]string{"venA"})
	fetcher := &fakeFetcher{bal: map[market.Asset]decimal.Decimal{"BTC": d("10"), "USDT": d("1000")}}
	require.NoError(t, c.RefreshFromVenue(context.Background(), "venA", fetcher, nil))

	require.NoError(t, c.Debit("venA", "USDT", d("100")))
	require.NoError(t, c.Credit("venA", "BTC", d("1")))

	quote, _ := c.Get("venA", "USDT")
	base, _ := c.Get("venA", "BTC")
	assert.True(t, quote.Equal(d("900")), "got %s", quote)
	assert.True(t, base.Equal(d("11")), "got %s", base)
}

func TestCache_Snapshot_IsCopy(t *testing.T) {
	c := balance.NewCache([]string{"venA"})
	fetcher := &fakeFetcher{bal: map[market.Asset]decimal.Decimal{"BTC": d("1")}}
	require.NoError(t, c.RefreshFromVenue(context.Background(), "venA", fetcher, nil))

	snap := c.Snapshot("venA")
	snap["BTC"] = d("999")

	got, _ := c.Get("venA", "BTC")
	assert.True(t, got.Equal(d("1")), "mutating the snapshot must not affect the cache")
}
