package order_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/order"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var sym = market.Symbol{Base: "ETH", Quote: "USDT"}

var meta = market.MarketMeta{Symbol: sym, BasePrecision: 8, QuotePrecision: 8, PricePrecision: 8}

var fees = market.FeeSchedule{MakerRate: d("0.001"), TakerRate: d("0.002")}

func TestFirstPriceWithFee_AskAndBid(t *testing.T) {
	snap := market.OrderBookSnapshot{
		Symbol: sym, Venue: "v1",
		Asks: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}},
		Bids: []market.OrderBookLevel{{Price: d("99"), Qty: d("1")}},
	}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)
	bid := order.New(sym, "v1", snap, order.RoleBid, fees, meta)

	askPrice, ok := ask.FirstPriceWithFee()
	require.True(t, ok)
	assert.True(t, askPrice.Equal(d("100.2")), "got %s", askPrice)

	bidPrice, ok := bid.FirstPriceWithFee()
	require.True(t, ok)
	assert.True(t, bidPrice.Equal(d("98.802")), "got %s", bidPrice)
}

func TestFirstPriceWithFee_EmptyBook(t *testing.T) {
	snap := market.OrderBookSnapshot{Symbol: sym, Venue: "v1"}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)
	_, ok := ask.FirstPriceWithFee()
	assert.False(t, ok)
}

func TestWalk_AskStopsWhenOpportunityCloses(t *testing.T) {
	snap := market.OrderBookSnapshot{
		Symbol: sym, Venue: "v1",
		Asks: []market.OrderBookLevel{
			{Price: d("100"), Qty: d("5")},
			{Price: d("101"), Qty: d("5")},
			{Price: d("200"), Qty: d("5")},
		},
	}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)
	// p_opp chosen so the first two levels (fee-adjusted) still beat it
	// but the third does not.
	ask.Walk(d("101.3"), order.NoCap())

	assert.True(t, ask.Found)
	assert.True(t, ask.BaseQty.Equal(d("10")), "base_qty=%s", ask.BaseQty)
}

func TestWalk_QuoteCapScalesLastLevel(t *testing.T) {
	snap := market.OrderBookSnapshot{
		Symbol: sym, Venue: "v1",
		Asks: []market.OrderBookLevel{
			{Price: d("100"), Qty: d("10")},
		},
	}
	noFee := market.FeeSchedule{MakerRate: decimal.Zero, TakerRate: decimal.Zero}
	ask := order.New(sym, "v1", snap, order.RoleAsk, noFee, meta)
	ask.Walk(d("200"), order.QuoteCap(d("500")))

	assert.True(t, ask.Found)
	assert.True(t, ask.BaseQty.Equal(d("5")), "base_qty=%s", ask.BaseQty)
	assert.True(t, ask.QuoteQty.Equal(d("500")), "quote_qty=%s", ask.QuoteQty)
}

func TestBetterAsk_PicksCheaper(t *testing.T) {
	cheap := market.OrderBookSnapshot{Symbol: sym, Venue: "cheap", Asks: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}}}
	dear := market.OrderBookSnapshot{Symbol: sym, Venue: "dear", Asks: []market.OrderBookLevel{{Price: d("110"), Qty: d("1")}}}
	a := order.New(sym, "cheap", cheap, order.RoleAsk, fees, meta)
	b := order.New(sym, "dear", dear, order.RoleAsk, fees, meta)

	assert.Equal(t, "cheap", order.BetterAsk(a, b).Venue)
	assert.Equal(t, "cheap", order.BetterAsk(b, a).Venue)
}

func TestBetterBid_PicksRicher(t *testing.T) {
	rich := market.OrderBookSnapshot{Symbol: sym, Venue: "rich", Bids: []market.OrderBookLevel{{Price: d("110"), Qty: d("1")}}}
	poor := market.OrderBookSnapshot{Symbol: sym, Venue: "poor", Bids: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}}}
	a := order.New(sym, "rich", rich, order.RoleBid, fees, meta)
	b := order.New(sym, "poor", poor, order.RoleBid, fees, meta)

	assert.Equal(t, "rich", order.BetterBid(a, b).Venue)
	assert.Equal(t, "rich", order.BetterBid(b, a).Venue)
}

type fakePlacer struct {
	result order.PlaceResult
}

func (f fakePlacer) PlaceOrder(_ context.Context, _ string, _ market.Symbol, _ order.Side, _, _ decimal.Decimal) (order.PlaceResult, *adapter.Error) {
	return f.result, nil
}

type fakeStatusFetcher struct {
	status *order.PolledStatus
}

func (f fakeStatusFetcher) FetchOrderStatus(_ context.Context, _ string, _ market.Symbol) (*order.PolledStatus, *adapter.Error) {
	return f.status, nil
}

func TestPlace_AcceptedTransitionsToActive(t *testing.T) {
	snap := market.OrderBookSnapshot{Symbol: sym, Venue: "v1", Asks: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}}}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)
	ask.BaseQty = d("1")
	ask.Price = d("100")

	aerr := ask.Place(context.Background(), fakePlacer{result: order.PlaceResult{Accepted: true, VenueOrderID: "abc"}}, "client-1")
	require.Nil(t, aerr)
	assert.Equal(t, order.StatusActive, ask.Status)
	assert.Equal(t, "abc", ask.VenueOrderID)
}

func TestPlace_RejectedTransitionsToFailed(t *testing.T) {
	snap := market.OrderBookSnapshot{Symbol: sym, Venue: "v1", Asks: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}}}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)

	aerr := ask.Place(context.Background(), fakePlacer{result: order.PlaceResult{Accepted: false}}, "client-1")
	assert.Nil(t, aerr)
	assert.Equal(t, order.StatusFailed, ask.Status)
}

func TestRefreshStatus_FillTransitionsToFilled(t *testing.T) {
	snap := market.OrderBookSnapshot{Symbol: sym, Venue: "v1", Asks: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}}}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)
	ask.Status = order.StatusActive
	ask.VenueOrderID = "abc"

	aerr := ask.RefreshStatus(context.Background(), fakeStatusFetcher{status: &order.PolledStatus{
		Price:   d("100"),
		BaseQty: d("1"),
		Filled:  true,
	}})
	require.Nil(t, aerr)
	assert.Equal(t, order.StatusFilled, ask.Status)
	assert.True(t, ask.ActualPriceWithFee.Equal(d("100.2")))
	assert.True(t, ask.ActualQuoteQty.Equal(d("100.2")))
}

func TestRefreshStatus_NilResultStaysActive(t *testing.T) {
	snap := market.OrderBookSnapshot{Symbol: sym, Venue: "v1", Asks: []market.OrderBookLevel{{Price: d("100"), Qty: d("1")}}}
	ask := order.New(sym, "v1", snap, order.RoleAsk, fees, meta)
	ask.Status = order.StatusActive

	aerr := ask.RefreshStatus(context.Background(), fakeStatusFetcher{status: nil})
	require.Nil(t, aerr)
	assert.Equal(t, order.StatusActive, ask.Status)
}
