// Package order implements the Order Entity: the side-aware
// representation of one leg of an arbitrage trade, the fee-adjusted
// price arithmetic, the layered order-book walk, and the
// placement/status-poll lifecycle that drives an entity from NONE
// through ACTIVE to a terminal FILLED or FAILED outcome.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
)

// Role tags which side of the two-leg trade an entity plays. ASK means
// "we BUY at the venue's ask price"; BID means "we SELL at the
// venue's bid price". Kept as a plain tagged variant rather than two
// subclasses so the walk and comparison logic lives in one place with
// two small role-specific branches.
type Role string

const (
	RoleAsk Role = "ASK"
	RoleBid Role = "BID"
)

// Side is the order side sent to the venue. ASK role places a BUY;
// BID role places a SELL.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (r Role) Side() Side {
	if r == RoleAsk {
		return SideBuy
	}
	return SideSell
}

// Status is the execution state of one entity. NONE -> ACTIVE is the
// only origin transition; FILLED and FAILED are terminal.
type Status string

const (
	StatusNone   Status = "NONE"
	StatusActive Status = "ACTIVE"
	StatusFailed Status = "FAILED"
	StatusFilled Status = "FILLED"
)

// PlaceResult is the outcome of a place_order call.
type PlaceResult struct {
	Accepted     bool
	VenueOrderID string
}

// Placer is the slice of a venue adapter an entity needs to place an
// order. Any venue.Adapter satisfies it structurally.
type Placer interface {
	PlaceOrder(ctx context.Context, clientOrderID string, symbol market.Symbol, side Side, baseQty, price decimal.Decimal) (PlaceResult, *adapter.Error)
}

// PolledStatus mirrors fetch_order_status's result; a nil pointer
// from StatusFetcher means "still indeterminate, poll again".
type PolledStatus struct {
	Price       decimal.Decimal
	BaseQty     decimal.Decimal
	FeeInQuote  *decimal.Decimal
	Timestamp   time.Time
	Filled      bool
}

// StatusFetcher is the slice of a venue adapter an entity needs to
// poll fill status.
type StatusFetcher interface {
	FetchOrderStatus(ctx context.Context, venueOrderID string, symbol market.Symbol) (*PolledStatus, *adapter.Error)
}

// Cap expresses the single active cap a walk may run under: never
// both base and quote at once (spec: "never both").
type Cap struct {
	MaxBaseQty  decimal.Decimal
	HasBaseCap  bool
	MaxQuoteQty decimal.Decimal
	HasQuoteCap bool
}

func NoCap() Cap { return Cap{} }

func BaseCap(q decimal.Decimal) Cap { return Cap{MaxBaseQty: q, HasBaseCap: true} }

func QuoteCap(q decimal.Decimal) Cap { return Cap{MaxQuoteQty: q, HasQuoteCap: true} }

// Entity is one leg of a candidate arbitrage trade.
type Entity struct {
	Symbol   market.Symbol
	Venue    string
	Snapshot market.OrderBookSnapshot
	Role     Role
	Fees     market.FeeSchedule

	PricePrecision int32
	BasePrecision  int32
	QuotePrecision int32

	// Computed state, populated by Walk.
	Price        decimal.Decimal
	PriceWithFee decimal.Decimal
	BaseQty      decimal.Decimal
	QuoteQty     decimal.Decimal
	Found        bool

	// Execution state.
	VenueOrderID       string
	PlacedAt           time.Time
	Status             Status
	ActualPrice        decimal.Decimal
	ActualPriceWithFee decimal.Decimal
	ActualBaseQty      decimal.Decimal
	ActualQuoteQty     decimal.Decimal
}

// New builds an Entity over an immutable snapshot. The snapshot's
// venue and symbol must already match the caller's expectations; New
// does not itself re-validate them (market.OrderBookSnapshot.Validate
// is the caller's responsibility before it reaches here).
func New(symbol market.Symbol, venue string, snap market.OrderBookSnapshot, role Role, fees market.FeeSchedule, meta market.MarketMeta) *Entity {
	return &Entity{
		Symbol:         symbol,
		Venue:          venue,
		Snapshot:       snap,
		Role:           role,
		Fees:           fees,
		PricePrecision: meta.PricePrecision,
		BasePrecision:  meta.BasePrecision,
		QuotePrecision: meta.QuotePrecision,
		Status:         StatusNone,
	}
}

// feeAdjust applies the venue's taker fee in the direction implied by
// role: ASK (we buy) pays more, BID (we sell) receives less. IOC
// orders only ever take liquidity, so the taker rate applies, never
// the maker rate.
func (e *Entity) feeAdjust(price decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if e.Role == RoleAsk {
		return price.Mul(one.Add(e.Fees.TakerRate))
	}
	return price.Mul(one.Sub(e.Fees.TakerRate))
}

func (e *Entity) roundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Truncate(e.PricePrecision)
}

func (e *Entity) roundBase(q decimal.Decimal) decimal.Decimal {
	return q.Truncate(e.BasePrecision)
}

func (e *Entity) roundQuote(q decimal.Decimal) decimal.Decimal {
	return q.Truncate(e.QuotePrecision)
}

// levels returns the book in its natural walk order: asks ascending
// for ASK, bids descending for BID.
func (e *Entity) levels() []market.OrderBookLevel {
	if e.Role == RoleAsk {
		return e.Snapshot.Asks
	}
	return e.Snapshot.Bids
}

// FirstPriceWithFee returns the fee-adjusted, rounded first-level
// price — the price used as the opposite side's p_opp input, and as
// the comparator's fallback before an opportunity has been walked.
func (e *Entity) FirstPriceWithFee() (decimal.Decimal, bool) {
	levels := e.levels()
	if len(levels) == 0 {
		return decimal.Zero, false
	}
	return e.roundPrice(e.feeAdjust(levels[0].Price)), true
}

// Walk runs the layered order-book walk against the opposite venue's
// fee-adjusted first-level price pOpp, under at most one of the two
// caps. It resets and repopulates the entity's
// computed state (Price, PriceWithFee, BaseQty, QuoteQty, Found) —
// mutual recalibration calls this twice against the same entity.
func (e *Entity) Walk(pOpp decimal.Decimal, cap Cap) {
	baseQty := decimal.Zero
	quoteQty := decimal.Zero
	found := false
	lastPrice := decimal.Zero
	lastPriceFee := decimal.Zero

	remainingBase := cap.MaxBaseQty
	remainingQuote := cap.MaxQuoteQty

	for _, lvl := range e.levels() {
		pFee := e.feeAdjust(lvl.Price)

		if e.Role == RoleAsk && pFee.GreaterThanOrEqual(pOpp) {
			break
		}
		if e.Role == RoleBid && pFee.LessThanOrEqual(pOpp) {
			break
		}

		takeB := lvl.Qty
		takeQ := pFee.Mul(takeB)

		if cap.HasQuoteCap && takeQ.GreaterThan(remainingQuote) {
			if takeQ.IsPositive() {
				scale := remainingQuote.Div(takeQ)
				takeB = takeB.Mul(scale)
				takeQ = takeQ.Mul(scale)
			}
		}
		if cap.HasBaseCap && takeB.GreaterThan(remainingBase) {
			if takeB.IsPositive() {
				scale := remainingBase.Div(takeB)
				takeB = takeB.Mul(scale)
				takeQ = takeQ.Mul(scale)
			}
		}

		baseQty = baseQty.Add(takeB)
		quoteQty = quoteQty.Add(takeQ)
		lastPrice = lvl.Price
		lastPriceFee = pFee
		found = true

		if cap.HasQuoteCap {
			remainingQuote = remainingQuote.Sub(takeQ)
			if remainingQuote.LessThanOrEqual(decimal.Zero) {
				break
			}
		}
		if cap.HasBaseCap {
			remainingBase = remainingBase.Sub(takeB)
			if remainingBase.LessThanOrEqual(decimal.Zero) {
				break
			}
		}
	}

	e.Found = found
	e.BaseQty = baseQty
	e.QuoteQty = quoteQty
	e.Price = e.roundPrice(lastPrice)
	e.PriceWithFee = e.roundPrice(lastPriceFee)
}

// comparePrice returns the price used when ranking two same-role
// entities: the actual filled price if FILLED, the planned
// fee-adjusted price if an opportunity has been walked, or the raw
// first-level fee-adjusted price otherwise.
func (e *Entity) comparePrice() (decimal.Decimal, bool) {
	if e.Status == StatusFilled {
		return e.ActualPriceWithFee, true
	}
	if e.Found {
		return e.PriceWithFee, true
	}
	return e.FirstPriceWithFee()
}

// BetterAsk picks the cheaper of two ASK entities (lower fee-adjusted
// price wins). Ties break on lexicographically smaller venue id.
// Defined as an explicit function rather than an overloaded operator
// per the redesign note against implicit ordering.
func BetterAsk(a, b *Entity) *Entity {
	pa, oka := a.comparePrice()
	pb, okb := b.comparePrice()
	if !okb {
		return a
	}
	if !oka {
		return b
	}
	switch {
	case pa.LessThan(pb):
		return a
	case pb.LessThan(pa):
		return b
	case a.Venue < b.Venue:
		return a
	default:
		return b
	}
}

// BetterBid picks the richer of two BID entities (higher fee-adjusted
// price wins). Ties break on lexicographically smaller venue id.
func BetterBid(a, b *Entity) *Entity {
	pa, oka := a.comparePrice()
	pb, okb := b.comparePrice()
	if !okb {
		return a
	}
	if !oka {
		return b
	}
	switch {
	case pa.GreaterThan(pb):
		return a
	case pb.GreaterThan(pa):
		return b
	case a.Venue < b.Venue:
		return a
	default:
		return b
	}
}

// Place transitions NONE -> ACTIVE by invoking the adapter. On
// acceptance=false it transitions to FAILED instead; NONE -> ACTIVE is
// the entity's only legal origin transition.
func (e *Entity) Place(ctx context.Context, p Placer, clientOrderID string) *adapter.Error {
	if e.Status != StatusNone {
		return adapter.New(e.Venue, "place_order", adapter.KindVenue, fmt.Errorf("order %s already in status %s", clientOrderID, e.Status))
	}
	res, aerr := p.PlaceOrder(ctx, clientOrderID, e.Symbol, e.Role.Side(), e.BaseQty, e.Price)
	if aerr != nil {
		e.Status = StatusFailed
		return aerr
	}
	if !res.Accepted {
		e.Status = StatusFailed
		return nil
	}
	e.VenueOrderID = res.VenueOrderID
	e.PlacedAt = time.Now()
	e.Status = StatusActive
	return nil
}

// RefreshStatus invokes fetch_order_status. A nil PolledStatus (or an
// error) leaves the entity ACTIVE — "still indeterminate, poll
// again". A populated result derives actual_price_with_fee from the
// adapter's fee_in_quote when present, otherwise from the fee
// schedule, and transitions to FILLED iff the adapter reports
// filled=true.
func (e *Entity) RefreshStatus(ctx context.Context, f StatusFetcher) *adapter.Error {
	if e.Status != StatusActive {
		return nil
	}
	polled, aerr := f.FetchOrderStatus(ctx, e.VenueOrderID, e.Symbol)
	if aerr != nil {
		return aerr
	}
	if polled == nil {
		return nil
	}

	e.ActualPrice = polled.Price
	e.ActualBaseQty = polled.BaseQty

	if polled.FeeInQuote != nil && !polled.BaseQty.IsZero() {
		feePerBase := polled.FeeInQuote.Div(polled.BaseQty)
		if e.Role == RoleAsk {
			e.ActualPriceWithFee = e.roundPrice(polled.Price.Add(feePerBase))
		} else {
			e.ActualPriceWithFee = e.roundPrice(polled.Price.Sub(feePerBase))
		}
	} else {
		e.ActualPriceWithFee = e.roundPrice(e.feeAdjust(polled.Price))
	}
	e.ActualQuoteQty = e.roundQuote(e.ActualBaseQty.Mul(e.ActualPriceWithFee))

	if polled.Filled {
		e.Status = StatusFilled
	}
	return nil
}
