// Package trade implements the Trade Controller: the per-candidate
// state machine that runs a detected opportunity from evaluation
// through dual placement, polling verification, persistence, and
// local balance adjustment, grounded on
// original_source/trader/trade.py's CryptonTrade.start pipeline.
package trade

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chidi150c/spotarb/internal/balance"
	"github.com/chidi150c/spotarb/internal/engine"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/metrics"
	"github.com/chidi150c/spotarb/internal/order"
	"github.com/chidi150c/spotarb/internal/store"
	"github.com/chidi150c/spotarb/internal/venue"
)

// State is the Trade Controller's current lifecycle state.
type State string

const (
	StateEvaluating State = "EVALUATING"
	StateRejected   State = "REJECTED"
	StatePlacing    State = "PLACING"
	StateVerifying  State = "VERIFYING"
	StateCancelling State = "CANCELLING"
	StateSuccess    State = "SUCCESS"
	StatePartial    State = "PARTIAL"
	StateAborted    State = "ABORTED"
)

// verifyPollCount is the 20-poll, increasing-sleep verification
// budget ("1.0s, 1.1s, 1.2s, ..., 2.9s"); its sum is a wall-clock
// budget of roughly 39s before verification gives up and records the
// trade as PARTIAL. No cancel is issued for an unfilled leg.
const verifyPollCount = 20

func verifyPollSleep(i int) time.Duration {
	return time.Duration(1000+100*i) * time.Millisecond
}

// Controller runs one candidate trade to a terminal state.
type Controller struct {
	ID        string
	Symbol    market.Symbol
	MarketStr string

	Ask, Bid         *order.Entity
	AskAdapter       venue.Adapter
	BidAdapter       venue.Adapter
	AskQuoteBalance  decimal.Decimal
	BidBaseBalance   decimal.Decimal
	Thresholds       engine.Thresholds

	Cache *balance.Cache
	Store store.TradeStore
	Log   *zap.Logger

	State        State
	RejectReason engine.Reason
	Decision     engine.Decision
}

// New builds a Controller for one tick's snapshot pair. ask and bid
// must already be constructed over the current collector snapshots
// (order.New), unwalked.
func New(symbol market.Symbol, marketStr string, ask, bid *order.Entity, askAdapter, bidAdapter venue.Adapter, askQuoteBalance, bidBaseBalance decimal.Decimal, th engine.Thresholds, cache *balance.Cache, st store.TradeStore, log *zap.Logger) *Controller {
	return &Controller{
		ID:              uuid.New().String(),
		Symbol:          symbol,
		MarketStr:       marketStr,
		Ask:             ask,
		Bid:             bid,
		AskAdapter:      askAdapter,
		BidAdapter:      bidAdapter,
		AskQuoteBalance: askQuoteBalance,
		BidBaseBalance:  bidBaseBalance,
		Thresholds:      th,
		Cache:           cache,
		Store:           st,
		Log:             log,
		State:           StateEvaluating,
	}
}

// marketPairID canonically joins the sorted venue ids with the
// market symbol, matching original_source/trader/trade.py's
// "_".join([*sorted(exchanges), market]).upper() construction.
func marketPairID(askVenue, bidVenue, marketStr string) string {
	ids := []string{askVenue, bidVenue}
	sort.Strings(ids)
	return strings.ToUpper(strings.Join(append(ids, marketStr), "_"))
}

// Run drives the state machine to completion, blocking the caller —
// the dispatch loop runs one trade to completion at a time rather
// than overlapping candidates.
func (c *Controller) Run(ctx context.Context) (State, error) {
	res, err := engine.Evaluate(c.Ask, c.Bid, c.AskQuoteBalance, c.BidBaseBalance, c.Thresholds)
	if err != nil {
		return "", fmt.Errorf("trade %s: invariant violation: %w", c.ID, err)
	}

	metrics.DecisionsTotal.WithLabelValues(string(orReason(res))).Inc()

	if !res.Accepted {
		c.State = StateRejected
		c.RejectReason = res.Reason
		c.Log.Info("trade rejected",
			zap.String("trade_id", c.ID), zap.String("reason", string(res.Reason)),
			zap.String("ask_venue", c.Ask.Venue), zap.String("bid_venue", c.Bid.Venue))
		c.persistRejected(ctx)
		return StateRejected, nil
	}
	c.Decision = res.Decision
	metrics.OpportunityProfitPercent.Observe(mustFloat(res.Decision.ProfitPercent))

	c.Ask.BaseQty = res.Decision.OrderBase
	c.Bid.BaseQty = res.Decision.OrderBase

	c.State = StatePlacing
	askAccepted, bidAccepted := c.placeBothLegs(ctx)

	switch {
	case askAccepted && bidAccepted:
		c.State = StateVerifying
		return c.verify(ctx)
	case askAccepted && !bidAccepted:
		return c.cancelLeg(ctx, c.Ask, c.AskAdapter)
	case !askAccepted && bidAccepted:
		return c.cancelLeg(ctx, c.Bid, c.BidAdapter)
	default:
		c.State = StateAborted
		metrics.TradesTotal.WithLabelValues(string(StateAborted)).Inc()
		c.persistTerminal(ctx, false)
		return StateAborted, nil
	}
}

// placeBothLegs dispatches both legs without an intervening await: the
// two legs are placed concurrently in the controller and race only
// against venue latency, never against each other's call to the
// controller.
func (c *Controller) placeBothLegs(ctx context.Context) (askAccepted, bidAccepted bool) {
	type result struct {
		accepted bool
	}
	askCh := make(chan result, 1)
	bidCh := make(chan result, 1)

	go func() {
		aerr := c.Ask.Place(ctx, c.AskAdapter, c.ID+"-ask")
		if aerr != nil {
			c.Log.Warn("place ask leg failed", zap.String("trade_id", c.ID), zap.Error(aerr))
		}
		askCh <- result{accepted: c.Ask.Status == order.StatusActive}
	}()
	go func() {
		aerr := c.Bid.Place(ctx, c.BidAdapter, c.ID+"-bid")
		if aerr != nil {
			c.Log.Warn("place bid leg failed", zap.String("trade_id", c.ID), zap.Error(aerr))
		}
		bidCh <- result{accepted: c.Bid.Status == order.StatusActive}
	}()

	askRes := <-askCh
	bidRes := <-bidCh
	return askRes.accepted, bidRes.accepted
}

// verify polls both legs up to verifyPollCount times, only polling
// legs not yet FILLED, with increasing sleep between passes.
func (c *Controller) verify(ctx context.Context) (State, error) {
	for i := 0; i < verifyPollCount; i++ {
		if c.Ask.Status != order.StatusActive && c.Bid.Status != order.StatusActive {
			break
		}
		if c.Ask.Status == order.StatusActive {
			if aerr := c.Ask.RefreshStatus(ctx, c.AskAdapter); aerr != nil {
				c.Log.Debug("poll ask status failed", zap.String("trade_id", c.ID), zap.Error(aerr))
			}
		}
		if c.Bid.Status == order.StatusActive {
			if aerr := c.Bid.RefreshStatus(ctx, c.BidAdapter); aerr != nil {
				c.Log.Debug("poll bid status failed", zap.String("trade_id", c.ID), zap.Error(aerr))
			}
		}
		if c.Ask.Status == order.StatusFilled && c.Bid.Status == order.StatusFilled {
			break
		}
		select {
		case <-ctx.Done():
			break
		case <-time.After(verifyPollSleep(i)):
		}
	}

	if c.Ask.Status == order.StatusFilled && c.Bid.Status == order.StatusFilled {
		c.State = StateSuccess
		c.settleFill()
		metrics.TradesTotal.WithLabelValues(string(StateSuccess)).Inc()
		c.persistTerminal(ctx, true)
		return StateSuccess, nil
	}

	c.State = StatePartial
	metrics.TradesTotal.WithLabelValues(string(StatePartial)).Inc()
	c.persistTerminal(ctx, true)
	return StatePartial, nil
}

// cancelLeg issues a cancel on the accepted leg and always persists
// ABORTED, since the other leg is already rejected by its venue.
func (c *Controller) cancelLeg(ctx context.Context, e *order.Entity, a venue.Adapter) (State, error) {
	c.State = StateCancelling
	if e.VenueOrderID != "" {
		if _, aerr := a.CancelOrder(ctx, e.VenueOrderID, c.Symbol); aerr != nil {
			c.Log.Warn("cancel accepted leg failed", zap.String("trade_id", c.ID), zap.Error(aerr))
		}
	}
	c.State = StateAborted
	metrics.TradesTotal.WithLabelValues(string(StateAborted)).Inc()
	c.persistTerminal(ctx, false)
	return StateAborted, nil
}

// settleFill debits/credits the Balance Cache by exactly the
// quantities traded: ASK venue spends quote, gains base; BID venue
// spends base, gains quote.
func (c *Controller) settleFill() {
	if err := c.Cache.Debit(c.Ask.Venue, c.Symbol.Quote, c.Ask.ActualQuoteQty); err != nil {
		c.Log.Warn("balance debit failed", zap.Error(err))
	}
	if err := c.Cache.Credit(c.Ask.Venue, c.Symbol.Base, c.Ask.ActualBaseQty); err != nil {
		c.Log.Warn("balance credit failed", zap.Error(err))
	}
	if err := c.Cache.Debit(c.Bid.Venue, c.Symbol.Base, c.Bid.ActualBaseQty); err != nil {
		c.Log.Warn("balance debit failed", zap.Error(err))
	}
	if err := c.Cache.Credit(c.Bid.Venue, c.Symbol.Quote, c.Bid.ActualQuoteQty); err != nil {
		c.Log.Warn("balance credit failed", zap.Error(err))
	}
}

func (c *Controller) persistRejected(ctx context.Context) {
	rec := c.baseRecord()
	rec.RejectReason = string(c.RejectReason)
	if err := c.Store.InsertTrade(ctx, rec); err != nil {
		c.Log.Warn("persist rejected trade failed", zap.String("trade_id", c.ID), zap.Error(err))
	}
}

func (c *Controller) persistTerminal(ctx context.Context, placed bool) {
	rec := c.baseRecord()
	rec.OrdersVerified = c.Ask.Status == order.StatusFilled && c.Bid.Status == order.StatusFilled
	rec.OrderQuantity = c.Decision.OrderBase
	rec.Expected = store.Expected{
		Ask:              legExpected(c.Ask, c.AskQuoteBalance),
		Bid:              legExpected(c.Bid, c.BidBaseBalance),
		ProfitPercentage: c.Decision.ProfitPercent,
		ProfitAmount:     c.Decision.ProfitQuote,
	}
	rec.Actual = store.Actual{
		Ask: legActual(c.Ask),
		Bid: legActual(c.Bid),
	}
	if rec.Actual.Ask.Filled && rec.Actual.Bid.Filled {
		rec.Actual.ProfitAmount = c.Bid.ActualQuoteQty.Sub(c.Ask.ActualQuoteQty)
		if !c.Bid.ActualQuoteQty.IsZero() {
			rec.Actual.ProfitPercentage = decimal.NewFromInt(100).Mul(rec.Actual.ProfitAmount).Div(c.Bid.ActualQuoteQty)
		}
	}

	if err := c.Store.InsertTrade(ctx, rec); err != nil {
		c.Log.Warn("persist trade failed", zap.String("trade_id", c.ID), zap.Error(err))
	}
	if err := c.Store.UpsertMarketPair(ctx, marketPairID(c.Ask.Venue, c.Bid.Venue, c.MarketStr), time.Now()); err != nil {
		c.Log.Warn("upsert market pair failed", zap.String("trade_id", c.ID), zap.Error(err))
	}
}

func (c *Controller) baseRecord() store.TradeRecord {
	return store.TradeRecord{
		ID:           c.ID,
		Timestamp:    time.Now(),
		AskExchange:  c.Ask.Venue,
		BidExchange:  c.Bid.Venue,
		Market:       c.MarketStr,
		MarketPairID: marketPairID(c.Ask.Venue, c.Bid.Venue, c.MarketStr),
	}
}

func legExpected(e *order.Entity, balance decimal.Decimal) store.LegExpected {
	return store.LegExpected{
		Price:         e.Price,
		PriceWithFee:  e.PriceWithFee,
		BaseQuantity:  e.BaseQty,
		QuoteQuantity: e.QuoteQty,
		OrderBook:     e.Snapshot,
		Balance:       balance,
	}
}

func legActual(e *order.Entity) store.LegActual {
	return store.LegActual{
		ExchangeOrderID: e.VenueOrderID,
		Price:           e.ActualPrice,
		PriceWithFee:    e.ActualPriceWithFee,
		Timestamp:       e.PlacedAt,
		BaseQuantity:    e.ActualBaseQty,
		Filled:          e.Status == order.StatusFilled,
	}
}

func orReason(res engine.Result) engine.Reason {
	if res.Accepted {
		return engine.ReasonAccepted
	}
	return res.Reason
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
