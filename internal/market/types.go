// Package market holds the venue-agnostic data model shared by every
// other package: assets, symbols, order books and fee schedules.
package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is a free-form uppercase ticker such as "BTC" or "USDT".
type Asset string

// Symbol is the ordered (base, quote) pair that identifies a market,
// e.g. base=BTC quote=USDT renders as "BTC/USDT".
type Symbol struct {
	Base  Asset
	Quote Asset
}

// ParseSymbol parses a "BASE/QUOTE" string into a Symbol.
func ParseSymbol(s string) (Symbol, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Symbol{}, fmt.Errorf("market: invalid symbol %q, want BASE/QUOTE", s)
	}
	return Symbol{
		Base:  Asset(strings.ToUpper(strings.TrimSpace(parts[0]))),
		Quote: Asset(strings.ToUpper(strings.TrimSpace(parts[1]))),
	}, nil
}

func (s Symbol) String() string {
	return string(s.Base) + "/" + string(s.Quote)
}

// MarketMeta is the per-venue descriptor of a Symbol, populated once at
// startup from the venue's exchange-info endpoint.
type MarketMeta struct {
	Symbol         Symbol
	MinBaseQty     decimal.Decimal
	MinQuoteQty    decimal.Decimal
	BasePrecision  int32
	QuotePrecision int32
	PricePrecision int32
}

// FeeSchedule is a pair of dimensionless proportions; 0.002 means 0.2%.
type FeeSchedule struct {
	MakerRate decimal.Decimal
	TakerRate decimal.Decimal
}

// OrderBookLevel is a single (price, base_quantity) tuple. Both fields
// are non-negative.
type OrderBookLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// OrderBookSnapshot is an immutable top-of-book view for one venue. Asks
// are ascending by price, bids descending. A new best price produces a
// new snapshot rather than mutating an existing one.
type OrderBookSnapshot struct {
	Symbol  Symbol
	Venue   string
	Asks    []OrderBookLevel
	Bids    []OrderBookLevel
}

// BestAsk returns the lowest ask level, or false if the book has none.
func (s OrderBookSnapshot) BestAsk() (OrderBookLevel, bool) {
	if len(s.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return s.Asks[0], true
}

// BestBid returns the highest bid level, or false if the book has none.
func (s OrderBookSnapshot) BestBid() (OrderBookLevel, bool) {
	if len(s.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return s.Bids[0], true
}

// Validate checks the structural invariants a well-formed snapshot must
// satisfy: ascending asks, descending bids, all-finite non-negative
// values, and no crossing at the best level. A failing snapshot is a
// data integrity violation and should be discarded by the caller
// rather than fed to the engine.
func (s OrderBookSnapshot) Validate() error {
	for i, lvl := range s.Asks {
		if err := validateLevel(lvl); err != nil {
			return fmt.Errorf("market: ask[%d]: %w", i, err)
		}
		if i > 0 && lvl.Price.LessThan(s.Asks[i-1].Price) {
			return fmt.Errorf("market: asks not ascending at index %d", i)
		}
	}
	for i, lvl := range s.Bids {
		if err := validateLevel(lvl); err != nil {
			return fmt.Errorf("market: bid[%d]: %w", i, err)
		}
		if i > 0 && lvl.Price.GreaterThan(s.Bids[i-1].Price) {
			return fmt.Errorf("market: bids not descending at index %d", i)
		}
	}
	if ask, ok := s.BestAsk(); ok {
		if bid, ok := s.BestBid(); ok && ask.Price.LessThanOrEqual(bid.Price) {
			return fmt.Errorf("market: best bid %s crosses best ask %s", bid.Price, ask.Price)
		}
	}
	return nil
}

func validateLevel(lvl OrderBookLevel) error {
	if lvl.Price.IsNegative() {
		return fmt.Errorf("negative price %s", lvl.Price)
	}
	if lvl.Qty.IsNegative() {
		return fmt.Errorf("negative quantity %s", lvl.Qty)
	}
	return nil
}
