// Package simulate is an in-memory Venue Adapter for --simulate runs
// and tests: it fills every order it accepts immediately at the
// requested price, the way broker_paper.go simulates execution against a single
// in-memory price without touching a real exchange.
package simulate

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/order"
)

// Book lets a test or --simulate run seed the snapshot a given symbol
// returns from FetchOrderBook.
type Book struct {
	Snapshot market.OrderBookSnapshot
}

type placedOrder struct {
	symbol  market.Symbol
	side    order.Side
	baseQty decimal.Decimal
	price   decimal.Decimal
}

// Adapter is a mutex-protected, fully in-memory venue.Adapter.
type Adapter struct {
	name string
	fees market.FeeSchedule

	mu       sync.Mutex
	balances map[market.Asset]decimal.Decimal
	books    map[market.Symbol]market.OrderBookSnapshot
	orders   map[string]placedOrder
}

// New builds a simulated venue named name, seeded with the given
// starting balances and fee schedule.
func New(name string, startingBalances map[market.Asset]decimal.Decimal, fees market.FeeSchedule) *Adapter {
	balances := make(map[market.Asset]decimal.Decimal, len(startingBalances))
	for k, v := range startingBalances {
		balances[k] = v
	}
	return &Adapter{
		name:     name,
		fees:     fees,
		balances: balances,
		books:    make(map[market.Symbol]market.OrderBookSnapshot),
		orders:   make(map[string]placedOrder),
	}
}

func (a *Adapter) Name() string { return a.name }

// SetOrderBook seeds the snapshot FetchOrderBook returns for symbol —
// the collector-side equivalent of PaperBroker's mutable price.
func (a *Adapter) SetOrderBook(symbol market.Symbol, snap market.OrderBookSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.books[symbol] = snap
}

// SeedBalance sets asset's available amount, overwriting any prior
// value. Used by --simulate/--worker wiring to bootstrap a dry-run
// balance the way broker_paper.go reads starting balances from the
// environment rather than a real account.
func (a *Adapter) SeedBalance(asset market.Asset, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[asset] = amount
}

func (a *Adapter) FetchMarkets(_ context.Context) ([]market.MarketMeta, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]market.MarketMeta, 0, len(a.books))
	for sym := range a.books {
		out = append(out, market.MarketMeta{Symbol: sym, BasePrecision: 8, QuotePrecision: 8, PricePrecision: 8})
	}
	return out, nil
}

func (a *Adapter) FetchBalance(_ context.Context) (map[market.Asset]decimal.Decimal, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[market.Asset]decimal.Decimal, len(a.balances))
	for k, v := range a.balances {
		out[k] = v
	}
	return out, nil
}

func (a *Adapter) FetchOrderBook(_ context.Context, symbol market.Symbol, _ int) (market.OrderBookSnapshot, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.books[symbol]
	if !ok {
		return market.OrderBookSnapshot{Symbol: symbol, Venue: a.name}, nil
	}
	return snap, nil
}

func (a *Adapter) FetchFees(_ context.Context, _ market.Symbol) (market.FeeSchedule, *adapter.Error) {
	return a.fees, nil
}

// PlaceOrder fills immediately: the simulated venue accepts any order
// its in-memory balance can cover (a BUY needs enough quote, a SELL
// enough base; otherwise it returns Accepted=false) and fills it in
// full at the requested price, debiting/crediting the in-memory
// balances right away. It never partially fills; this adapter exists
// to exercise the rest of the system under deterministic conditions,
// not to model venue risk.
func (a *Adapter) PlaceOrder(_ context.Context, _ string, symbol market.Symbol, side order.Side, baseQty, price decimal.Decimal) (order.PlaceResult, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	quoteQty := baseQty.Mul(price)
	switch side {
	case order.SideBuy:
		if a.balances[symbol.Quote].LessThan(quoteQty) {
			return order.PlaceResult{Accepted: false}, nil
		}
		a.balances[symbol.Quote] = a.balances[symbol.Quote].Sub(quoteQty)
		a.balances[symbol.Base] = a.balances[symbol.Base].Add(baseQty)
	case order.SideSell:
		if a.balances[symbol.Base].LessThan(baseQty) {
			return order.PlaceResult{Accepted: false}, nil
		}
		a.balances[symbol.Base] = a.balances[symbol.Base].Sub(baseQty)
		a.balances[symbol.Quote] = a.balances[symbol.Quote].Add(quoteQty)
	}

	id := uuid.New().String()
	a.orders[id] = placedOrder{symbol: symbol, side: side, baseQty: baseQty, price: price}
	return order.PlaceResult{Accepted: true, VenueOrderID: id}, nil
}

func (a *Adapter) CancelOrder(_ context.Context, venueOrderID string, _ market.Symbol) (bool, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// Every simulated order fills synchronously inside PlaceOrder, so
	// there is never anything left to cancel.
	_, existed := a.orders[venueOrderID]
	return !existed, nil
}

func (a *Adapter) FetchOrderStatus(_ context.Context, venueOrderID string, _ market.Symbol) (*order.PolledStatus, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	po, ok := a.orders[venueOrderID]
	if !ok {
		return nil, nil
	}
	return &order.PolledStatus{
		Price:   po.price,
		BaseQty: po.baseQty,
		Filled:  true,
	}, nil
}
