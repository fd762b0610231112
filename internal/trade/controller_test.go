package trade

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/balance"
	"github.com/chidi150c/spotarb/internal/engine"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/order"
	"github.com/chidi150c/spotarb/internal/store"
)

// fakeAdapter is a minimal venue.Adapter stub whose PlaceOrder and
// FetchOrderStatus behavior is configured per test.
type fakeAdapter struct {
	name          string
	placeAccepted bool
	placeID       string
	statuses      []*order.PolledStatus // consumed in order, last repeats
	statusIdx     int
	cancelled     bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) PlaceOrder(_ context.Context, _ string, _ market.Symbol, _ order.Side, _, _ decimal.Decimal) (order.PlaceResult, *adapter.Error) {
	return order.PlaceResult{Accepted: f.placeAccepted, VenueOrderID: f.placeID}, nil
}

func (f *fakeAdapter) FetchOrderStatus(_ context.Context, _ string, _ market.Symbol) (*order.PolledStatus, *adapter.Error) {
	if len(f.statuses) == 0 {
		return nil, nil
	}
	idx := f.statusIdx
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	} else {
		f.statusIdx++
	}
	return f.statuses[idx], nil
}

func (f *fakeAdapter) FetchMarkets(_ context.Context) ([]market.MarketMeta, *adapter.Error) {
	return nil, nil
}
func (f *fakeAdapter) FetchBalance(_ context.Context) (map[market.Asset]decimal.Decimal, *adapter.Error) {
	return nil, nil
}
func (f *fakeAdapter) FetchOrderBook(_ context.Context, _ market.Symbol, _ int) (market.OrderBookSnapshot, *adapter.Error) {
	return market.OrderBookSnapshot{}, nil
}
func (f *fakeAdapter) FetchFees(_ context.Context, _ market.Symbol) (market.FeeSchedule, *adapter.Error) {
	return market.FeeSchedule{}, nil
}
func (f *fakeAdapter) CancelOrder(_ context.Context, _ string, _ market.Symbol) (bool, *adapter.Error) {
	f.cancelled = true
	return true, nil
}

func sym() market.Symbol { return market.Symbol{Base: "BTC", Quote: "USDT"} }

func meta() market.MarketMeta {
	return market.MarketMeta{Symbol: sym(), BasePrecision: 6, QuotePrecision: 2, PricePrecision: 2}
}

func fees() market.FeeSchedule {
	return market.FeeSchedule{MakerRate: decimal.NewFromFloat(0.001), TakerRate: decimal.NewFromFloat(0.001)}
}

func book(askPrice, askQty, bidPrice, bidQty string) market.OrderBookSnapshot {
	return market.OrderBookSnapshot{
		Symbol: sym(),
		Asks:   []market.OrderBookLevel{{Price: decimal.RequireFromString(askPrice), Qty: decimal.RequireFromString(askQty)}},
		Bids:   []market.OrderBookLevel{{Price: decimal.RequireFromString(bidPrice), Qty: decimal.RequireFromString(bidQty)}},
	}
}

func thresholds() engine.Thresholds {
	return engine.Thresholds{
		MinBaseQty:       decimal.NewFromInt(1),
		MinQuoteQty:      decimal.NewFromInt(1),
		BasePrecision:    6,
		QuotePrecision:   2,
		MinProfitPercent: decimal.Zero,
		MinProfitAmount:  decimal.Zero,
	}
}

func newEntities() (ask, bid *order.Entity) {
	askSnap := book("100.00", "50", "99.00", "1")
	askSnap.Venue = "exA"
	bidSnap := book("101.00", "1", "100.50", "50")
	bidSnap.Venue = "exB"
	ask = order.New(sym(), "exA", askSnap, order.RoleAsk, fees(), meta())
	bid = order.New(sym(), "exB", bidSnap, order.RoleBid, fees(), meta())
	return ask, bid
}

func TestController_Run_SuccessPath(t *testing.T) {
	ask, bid := newEntities()
	askAdapter := &fakeAdapter{name: "exA", placeAccepted: true, placeID: "ask-1",
		statuses: []*order.PolledStatus{{Price: decimal.NewFromInt(100), BaseQty: decimal.NewFromInt(30), Filled: true, Timestamp: time.Now()}}}
	bidAdapter := &fakeAdapter{name: "exB", placeAccepted: true, placeID: "bid-1",
		statuses: []*order.PolledStatus{{Price: decimal.NewFromInt(101), BaseQty: decimal.NewFromInt(30), Filled: true, Timestamp: time.Now()}}}

	cache := balance.NewCache([]string{"exA", "exB"})
	st := store.NewMemory()
	log := zap.NewNop()

	c := New(sym(), "BTC-USDT", ask, bid, askAdapter, bidAdapter, decimal.NewFromInt(100000), decimal.NewFromInt(100), thresholds(), cache, st, log)

	final, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, final)
	assert.Len(t, st.Trades(), 1)
	assert.True(t, st.Trades()[0].Actual.Ask.Filled)
	assert.True(t, st.Trades()[0].Actual.Bid.Filled)
}

func TestController_Run_RejectedNoArbitrage(t *testing.T) {
	askSnap := book("100.00", "50", "99.00", "1")
	askSnap.Venue = "exA"
	bidSnap := book("99.50", "1", "99.40", "50")
	bidSnap.Venue = "exB"
	ask := order.New(sym(), "exA", askSnap, order.RoleAsk, fees(), meta())
	bid := order.New(sym(), "exB", bidSnap, order.RoleBid, fees(), meta())

	askAdapter := &fakeAdapter{name: "exA"}
	bidAdapter := &fakeAdapter{name: "exB"}
	cache := balance.NewCache([]string{"exA", "exB"})
	st := store.NewMemory()
	log := zap.NewNop()

	c := New(sym(), "BTC-USDT", ask, bid, askAdapter, bidAdapter, decimal.NewFromInt(100000), decimal.NewFromInt(100), thresholds(), cache, st, log)

	final, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, final)
	assert.Equal(t, string(engine.ReasonNoArbitrage), st.Trades()[0].RejectReason)
}

func TestController_Run_OneLegRejectedByVenueCancelsOther(t *testing.T) {
	ask, bid := newEntities()
	askAdapter := &fakeAdapter{name: "exA", placeAccepted: true, placeID: "ask-1"}
	bidAdapter := &fakeAdapter{name: "exB", placeAccepted: false}

	cache := balance.NewCache([]string{"exA", "exB"})
	st := store.NewMemory()
	log := zap.NewNop()

	c := New(sym(), "BTC-USDT", ask, bid, askAdapter, bidAdapter, decimal.NewFromInt(100000), decimal.NewFromInt(100), thresholds(), cache, st, log)

	final, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAborted, final)
	assert.True(t, askAdapter.cancelled)
}

func TestController_Run_BothLegsRejectedAborts(t *testing.T) {
	ask, bid := newEntities()
	askAdapter := &fakeAdapter{name: "exA", placeAccepted: false}
	bidAdapter := &fakeAdapter{name: "exB", placeAccepted: false}

	cache := balance.NewCache([]string{"exA", "exB"})
	st := store.NewMemory()
	log := zap.NewNop()

	c := New(sym(), "BTC-USDT", ask, bid, askAdapter, bidAdapter, decimal.NewFromInt(100000), decimal.NewFromInt(100), thresholds(), cache, st, log)

	final, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAborted, final)
}

func TestMarketPairID_SortsVenuesAndUppercases(t *testing.T) {
	assert.Equal(t, "BINANCE_COINBASE_BTC-USDT", marketPairID("coinbase", "binance", "BTC-USDT"))
}
