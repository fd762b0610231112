// Package venue defines the uniform contract every exchange
// integration must satisfy and a registry that resolves a configured
// venue id to a constructed Adapter.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/order"
)

// Adapter is the polymorphic capability set over a single venue.
// Every method returns a non-nil *adapter.Error instead of a bare
// Go error on failure — nothing escapes this boundary raw. Adapter
// embeds order.Placer and order.StatusFetcher so an Entity can use it
// directly without an adapter importing the order package back.
type Adapter interface {
	order.Placer
	order.StatusFetcher

	Name() string

	// FetchMarkets lists all tradable symbols with precision and
	// minimum-qty data. Called once at startup.
	FetchMarkets(ctx context.Context) ([]market.MarketMeta, *adapter.Error)

	// FetchBalance returns available (non-locked) amounts per asset.
	FetchBalance(ctx context.Context) (map[market.Asset]decimal.Decimal, *adapter.Error)

	// FetchOrderBook returns the top `depth` levels, asks ascending,
	// bids descending. A failure here is non-fatal: callers skip the
	// tick.
	FetchOrderBook(ctx context.Context, symbol market.Symbol, depth int) (market.OrderBookSnapshot, *adapter.Error)

	// FetchFees is called once at startup; implementations may fall
	// back to a hard-coded schedule if the venue refuses the request.
	FetchFees(ctx context.Context, symbol market.Symbol) (market.FeeSchedule, *adapter.Error)

	// CancelOrder requests cancellation of a resting/IOC order.
	CancelOrder(ctx context.Context, venueOrderID string, symbol market.Symbol) (bool, *adapter.Error)
}
