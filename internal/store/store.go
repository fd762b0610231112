// Package store defines the document-store persistence boundary: the
// trades / balance_current / balance_history / market_pairs
// collections, the exact persisted trade record layout, and a
// Mongo-backed plus in-memory implementation.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/market"
)

// LegExpected is the expected-side sub-document for one leg: the
// persisted `expected.ask` / `expected.bid`.
type LegExpected struct {
	Price         decimal.Decimal `bson:"price" json:"price"`
	PriceWithFee  decimal.Decimal `bson:"price_with_fee" json:"price_with_fee"`
	BaseQuantity  decimal.Decimal `bson:"base_quantity" json:"base_quantity"`
	QuoteQuantity decimal.Decimal `bson:"quote_quantity" json:"quote_quantity"`
	OrderBook     market.OrderBookSnapshot `bson:"order_book" json:"order_book"`
	Balance       decimal.Decimal `bson:"balance" json:"balance"`
}

// LegActual is the actual-side sub-document for one leg: the
// persisted `actual.ask` / `actual.bid`.
type LegActual struct {
	ExchangeOrderID string          `bson:"exchange_order_id" json:"exchange_order_id"`
	Price           decimal.Decimal `bson:"price" json:"price"`
	PriceWithFee    decimal.Decimal `bson:"price_with_fee" json:"price_with_fee"`
	Timestamp       time.Time       `bson:"timestamp" json:"timestamp"`
	BaseQuantity    decimal.Decimal `bson:"base_quantity" json:"base_quantity"`
	Filled          bool            `bson:"filled" json:"filled"`
}

// Expected is the top-level `expected` sub-document.
type Expected struct {
	Ask              LegExpected     `bson:"ask" json:"ask"`
	Bid              LegExpected     `bson:"bid" json:"bid"`
	ProfitPercentage decimal.Decimal `bson:"profit_percentage" json:"profit_percentage"`
	ProfitAmount     decimal.Decimal `bson:"profit_amount" json:"profit_amount"`
}

// Actual is the top-level `actual` sub-document.
type Actual struct {
	Ask              LegActual       `bson:"ask" json:"ask"`
	Bid              LegActual       `bson:"bid" json:"bid"`
	ProfitPercentage decimal.Decimal `bson:"profit_percentage" json:"profit_percentage"`
	ProfitAmount     decimal.Decimal `bson:"profit_amount" json:"profit_amount"`
}

// TradeRecord is exactly the persisted trade document layout.
type TradeRecord struct {
	ID             string    `bson:"_id" json:"_id"`
	OrdersVerified bool      `bson:"orders_verified" json:"orders_verified"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	AskExchange    string    `bson:"ask_exchange" json:"ask_exchange"`
	BidExchange    string    `bson:"bid_exchange" json:"bid_exchange"`
	Market         string    `bson:"market" json:"market"`
	OrderQuantity  decimal.Decimal `bson:"order_quantity" json:"order_quantity"`
	MarketPairID   string    `bson:"market_pair_id" json:"market_pair_id"`

	Expected Expected `bson:"expected" json:"expected"`
	Actual   Actual   `bson:"actual" json:"actual"`

	// RejectReason is populated only when the trade never reached
	// PLACING, persisted for audit even though no orders were placed.
	RejectReason string `bson:"reject_reason,omitempty" json:"reject_reason,omitempty"`
}

// BalanceHistoryEntry is one row of the append-only balance_history
// ledger: "one row per (venue, asset, refresh timestamp)".
type BalanceHistoryEntry struct {
	Venue     string          `bson:"venue" json:"venue"`
	Asset     market.Asset    `bson:"asset" json:"asset"`
	Amount    decimal.Decimal `bson:"amount" json:"amount"`
	Timestamp time.Time       `bson:"timestamp" json:"timestamp"`
}

// TradeStore is the document-store boundary the rest of the system
// depends on. It subsumes balance.Store's three methods so a single
// concrete store (Mongo or Memory) backs both the Balance Cache and
// the Trade Controller without a separate adapter shim.
type TradeStore interface {
	InsertTrade(ctx context.Context, rec TradeRecord) error

	WriteBalance(ctx context.Context, venue string, balances map[market.Asset]decimal.Decimal) error
	ReadBalance(ctx context.Context, venue string) (map[market.Asset]decimal.Decimal, error)
	AppendBalanceHistory(ctx context.Context, entry BalanceHistoryEntry) error

	// UpsertMarketPair records first_run on first sight of key and
	// last_run on every sight thereafter, the market_pairs tracking
	// feature carried over from original_source's worker bookkeeping.
	UpsertMarketPair(ctx context.Context, key string, now time.Time) error
}
