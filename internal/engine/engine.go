// Package engine implements the Opportunity Engine: a pure function
// of two Order Entities and the relevant balance caps that produces a
// sized, feasible arbitrage decision or a stable rejection reason. It
// does no I/O and does not log — the Trade Controller logs around it.
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/order"
)

// Reason is one of the small set of stable decision-reason codes every
// evaluation surfaces for logging.
type Reason string

const (
	ReasonAccepted          Reason = "ACCEPTED"
	ReasonSameVenue         Reason = "SAME_VENUE"
	ReasonInsufficientBase  Reason = "INSUFFICIENT_BASE"
	ReasonInsufficientQuote Reason = "INSUFFICIENT_QUOTE"
	ReasonNoArbitrage       Reason = "NO_ARBITRAGE"
	ReasonBelowMinBase      Reason = "BELOW_MIN_BASE"
	ReasonBelowMinQuote     Reason = "BELOW_MIN_QUOTE"
	ReasonBelowMinProfit    Reason = "BELOW_MIN_PROFIT"
)

// ErrInvariantViolation signals the internal post-recalibration
// invariant (ASK.base_qty == BID.base_qty within one base-precision
// unit) failed to hold. This is a fatal condition; the caller is
// expected to terminate the process rather than proceed.
var ErrInvariantViolation = errors.New("engine: post-recalibration base quantity mismatch exceeds one precision unit")

// Thresholds carries the per-market minimums and per-trade profit
// floor the engine rejects against. These are configuration, not part
// of market.MarketMeta, because min_profit_perc/min_profit_amount are
// per-venue settings while the qty/precision fields mirror MarketMeta
// overrides.
type Thresholds struct {
	MinBaseQty       decimal.Decimal
	MinQuoteQty      decimal.Decimal
	BasePrecision    int32
	QuotePrecision   int32
	MinProfitPercent decimal.Decimal
	MinProfitAmount  decimal.Decimal
}

// Decision is the sizing result of an accepted evaluation.
type Decision struct {
	OrderBase     decimal.Decimal
	OrderQuote    decimal.Decimal
	ProfitPercent decimal.Decimal
	ProfitQuote   decimal.Decimal
}

// Result is the full outcome of one Evaluate call.
type Result struct {
	Accepted bool
	Reason   Reason
	Decision Decision
}

func reject(reason Reason) Result {
	return Result{Accepted: false, Reason: reason}
}

// Evaluate runs the twelve-step opportunity walk and mutual
// recalibration: cap-check both balances, walk each leg against the
// other's top-of-book price, recalibrate the larger side down to the
// smaller, re-check the recalibration invariant, then size and check
// the trade against the minimums and profit floor. ask and bid are
// mutated in place by their Walk calls, exactly as original_source's
// CryptonTrade.get_best_opportunity mutates its order objects in
// place — callers must not reuse an Entity across two unrelated
// evaluations without resetting it.
func Evaluate(ask, bid *order.Entity, askQuoteBalance, bidBaseBalance decimal.Decimal, th Thresholds) (Result, error) {
	// 1.
	if ask.Venue == bid.Venue {
		return reject(ReasonSameVenue), nil
	}

	// 2.
	askQuoteCap := askQuoteBalance
	if askQuoteCap.LessThan(th.MinQuoteQty) {
		return reject(ReasonInsufficientQuote), nil
	}

	// 3.
	bidBaseCap := bidBaseBalance
	if bidBaseCap.LessThan(th.MinBaseQty) {
		return reject(ReasonInsufficientBase), nil
	}

	// 4.
	bidFirstPriceWithFee, bidHasBook := bid.FirstPriceWithFee()
	if !bidHasBook {
		return reject(ReasonNoArbitrage), nil
	}
	ask.Walk(bidFirstPriceWithFee, order.QuoteCap(askQuoteCap))

	// 5.
	askFirstPriceWithFee, askHasBook := ask.FirstPriceWithFee()
	if !askHasBook {
		return reject(ReasonNoArbitrage), nil
	}
	bid.Walk(askFirstPriceWithFee, order.BaseCap(bidBaseCap))

	// 6. Mutual recalibration.
	if ask.BaseQty.GreaterThan(bid.BaseQty) {
		ask.Walk(bidFirstPriceWithFee, order.BaseCap(bid.BaseQty))
	} else if bid.BaseQty.GreaterThan(ask.BaseQty) {
		bid.Walk(askFirstPriceWithFee, order.BaseCap(ask.BaseQty))
	}

	if err := checkRecalibration(ask, bid, th.BasePrecision); err != nil {
		return Result{}, err
	}

	// 7.
	if !ask.Found || !bid.Found {
		return reject(ReasonNoArbitrage), nil
	}

	// 8.
	orderBase := bid.BaseQty.Truncate(th.BasePrecision)
	if orderBase.LessThan(th.MinBaseQty) {
		return reject(ReasonBelowMinBase), nil
	}

	// 9.
	orderQuote := ask.QuoteQty.Truncate(th.QuotePrecision)
	if orderQuote.LessThan(th.MinQuoteQty) {
		return reject(ReasonBelowMinQuote), nil
	}

	// 10.
	profitQuote := bid.QuoteQty.Sub(ask.QuoteQty)
	var profitPercent decimal.Decimal
	if bid.QuoteQty.IsZero() {
		profitPercent = decimal.Zero
	} else {
		profitPercent = decimal.NewFromInt(100).Mul(profitQuote).Div(bid.QuoteQty)
	}

	// 11. Either threshold passing accepts; both must fail to reject.
	if profitPercent.LessThan(th.MinProfitPercent) && profitQuote.LessThan(th.MinProfitAmount) {
		return reject(ReasonBelowMinProfit), nil
	}

	// 12.
	return Result{
		Accepted: true,
		Reason:   ReasonAccepted,
		Decision: Decision{
			OrderBase:     orderBase,
			OrderQuote:    orderQuote,
			ProfitPercent: profitPercent,
			ProfitQuote:   profitQuote,
		},
	}, nil
}

// checkRecalibration enforces the post-condition that recalibration
// must establish: ASK.base_qty == BID.base_qty within one
// base-precision unit. A violation beyond that tolerance is an
// internal invariant failure, not a rejection reason.
func checkRecalibration(ask, bid *order.Entity, basePrecision int32) error {
	diff := ask.BaseQty.Sub(bid.BaseQty).Abs()
	tolerance := decimal.New(1, -basePrecision)
	if diff.GreaterThan(tolerance) {
		return fmt.Errorf("%w: |%s - %s| = %s > %s", ErrInvariantViolation, ask.BaseQty, bid.BaseQty, diff, tolerance)
	}
	return nil
}
