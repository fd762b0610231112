// Package dispatch implements the Dispatch Loop: the single-threaded
// driver that watches both Book Collectors' changed flags, evaluates
// both trade directions on an edge, runs the Trade Controller to
// completion, and periodically resyncs the Balance Cache, grounded on
// original_source/trader/looper.py's main polling loop and live.go's
// worker goroutine shape.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chidi150c/spotarb/internal/balance"
	"github.com/chidi150c/spotarb/internal/collector"
	"github.com/chidi150c/spotarb/internal/engine"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/metrics"
	"github.com/chidi150c/spotarb/internal/order"
	"github.com/chidi150c/spotarb/internal/store"
	"github.com/chidi150c/spotarb/internal/trade"
	"github.com/chidi150c/spotarb/internal/venue"
)

const (
	// storeSyncEveryTicks is the 1,000-tick read-through resync of the
	// Balance Cache from the document store.
	storeSyncEveryTicks = 1000
	// venueSyncEveryTicks is the 10,000-tick direct venue resync.
	venueSyncEveryTicks = 10000
	// minSleep is the loop's floor tick interval regardless of
	// performance_mode.
	minSleep = 10 * time.Millisecond
	// cooldown is the pause after a trade reaches SUCCESS or PARTIAL,
	// giving both venues time to settle before the next evaluation.
	cooldown = 2 * time.Second
)

// VenueContext bundles one side's adapter, collector and market
// metadata — everything the loop needs to build an order.Entity for
// that venue on a given tick.
type VenueContext struct {
	ID        string
	Adapter   venue.Adapter
	Collector *collector.Collector
	Meta      market.MarketMeta
	Fees      market.FeeSchedule
}

// Loop drives one (market, venue-pair) worker to completion.
type Loop struct {
	Symbol    market.Symbol
	MarketStr string
	A, B      VenueContext

	Cache      *balance.Cache
	Store      store.TradeStore
	Thresholds engine.Thresholds
	Log        *zap.Logger

	tick uint64
}

// NewLoop builds a Loop over two already-running collectors.
func NewLoop(symbol market.Symbol, marketStr string, a, b VenueContext, cache *balance.Cache, st store.TradeStore, th engine.Thresholds, log *zap.Logger) *Loop {
	return &Loop{Symbol: symbol, MarketStr: marketStr, A: a, B: b, Cache: cache, Store: st, Thresholds: th, Log: log}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.tick++
		l.maybeResync(ctx)

		changedA := l.A.Collector.ConsumeChanged()
		changedB := l.B.Collector.ConsumeChanged()

		if changedA || changedB {
			state, attempted := l.attempt(ctx)
			if attempted {
				switch state {
				case trade.StateSuccess, trade.StatePartial:
					if !sleepOrDone(ctx, cooldown) {
						return
					}
				}
			}
		}

		if !sleepOrDone(ctx, minSleep) {
			return
		}
	}
}

// maybeResync runs the 1,000-tick store resync and the 10,000-tick
// direct venue resync. A tick divisible by both only runs the venue
// resync, since it supersedes the store snapshot.
func (l *Loop) maybeResync(ctx context.Context) {
	if l.tick%venueSyncEveryTicks == 0 {
		for _, vc := range []VenueContext{l.A, l.B} {
			if err := l.Cache.RefreshFromVenue(ctx, vc.ID, vc.Adapter, l.Store); err != nil {
				l.Log.Warn("balance refresh from venue failed", zap.String("venue", vc.ID), zap.Error(err))
				continue
			}
			metrics.BalanceRefreshTotal.WithLabelValues(vc.ID, "venue").Inc()
		}
		return
	}
	if l.tick%storeSyncEveryTicks == 0 {
		for _, vc := range []VenueContext{l.A, l.B} {
			if err := l.Cache.RefreshFromStore(ctx, vc.ID, l.Store); err != nil {
				l.Log.Warn("balance refresh from store failed", zap.String("venue", vc.ID), zap.Error(err))
				continue
			}
			metrics.BalanceRefreshTotal.WithLabelValues(vc.ID, "store").Inc()
		}
	}
}

// attempt evaluates both trade directions (A-ask/B-bid, then
// B-ask/A-bid) and runs the Trade Controller for the first one the
// Opportunity Engine accepts. attempted is false when either venue
// has not published a snapshot yet.
func (l *Loop) attempt(ctx context.Context) (state trade.State, attempted bool) {
	snapA, okA := l.A.Collector.Latest()
	snapB, okB := l.B.Collector.Latest()
	if !okA || !okB {
		metrics.SkippedTicksGauge.Inc()
		return "", false
	}
	metrics.SkippedTicksGauge.Set(0)

	st := l.runDirection(ctx, l.A, snapA, l.B, snapB)
	if st != trade.StateRejected {
		return st, true
	}
	return l.runDirection(ctx, l.B, snapB, l.A, snapA), true
}

// runDirection builds the ask/bid entities for one candidate
// direction (ask leg on askVC, bid leg on bidVC) and runs a fresh
// Trade Controller over them.
func (l *Loop) runDirection(ctx context.Context, askVC VenueContext, askSnap market.OrderBookSnapshot, bidVC VenueContext, bidSnap market.OrderBookSnapshot) trade.State {
	askEntity := order.New(l.Symbol, askVC.ID, askSnap, order.RoleAsk, askVC.Fees, askVC.Meta)
	bidEntity := order.New(l.Symbol, bidVC.ID, bidSnap, order.RoleBid, bidVC.Fees, bidVC.Meta)

	askQuoteBal, _ := l.Cache.Get(askVC.ID, l.Symbol.Quote)
	bidBaseBal, _ := l.Cache.Get(bidVC.ID, l.Symbol.Base)

	ctrl := trade.New(l.Symbol, l.MarketStr, askEntity, bidEntity, askVC.Adapter, bidVC.Adapter, askQuoteBal, bidBaseBal, l.Thresholds, l.Cache, l.Store, l.Log)
	state, err := ctrl.Run(ctx)
	if err != nil {
		l.Log.Fatal("opportunity engine invariant violated, terminating",
			zap.String("trade_id", ctrl.ID), zap.Error(err))
	}
	return state
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
