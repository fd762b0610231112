// Package collector implements the Book Collector: a per-venue task
// that keeps the freshest top-of-book snapshot and raises an
// edge-triggered changed flag whenever the best price moves, grounded
// on original_source/trader/collector.py's Collector class and
// live.go's polling loop shape.
package collector

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
)

// Fetcher is the slice of venue.Adapter a Collector needs.
type Fetcher interface {
	FetchOrderBook(ctx context.Context, symbol market.Symbol, depth int) (market.OrderBookSnapshot, *adapter.Error)
}

const defaultDepth = 20

// Collector runs the REQUEST-mode polling loop for one venue. The
// zero value is not usable; construct with New.
type Collector struct {
	venue     string
	symbol    market.Symbol
	fetcher   Fetcher
	sleep     time.Duration
	depth     int
	log       *zap.Logger

	latest  atomic.Pointer[market.OrderBookSnapshot]
	changed atomic.Bool

	stop chan struct{}
	done chan struct{}
}

// New builds a Collector. sleep is the configured per-tick interval
// (the venue's "sleep_time" settings-file field); depth<=0 defaults
// to 20, matching "calls fetch_order_book with depth 20".
func New(venue string, symbol market.Symbol, fetcher Fetcher, sleep time.Duration, depth int, log *zap.Logger) *Collector {
	if depth <= 0 {
		depth = defaultDepth
	}
	return &Collector{
		venue:   venue,
		symbol:  symbol,
		fetcher: fetcher,
		sleep:   sleep,
		depth:   depth,
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run blocks, polling until ctx is cancelled or Stop is called — a
// shutdown signal causes the collector to stop before its next sleep.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		snap, aerr := c.fetcher.FetchOrderBook(ctx, c.symbol, c.depth)
		if aerr != nil {
			c.log.Debug("collector: fetch_order_book failed, tick skipped",
				zap.String("venue", c.venue), zap.Error(aerr))
		} else if err := snap.Validate(); err != nil {
			c.log.Warn("collector: malformed order book discarded",
				zap.String("venue", c.venue), zap.Error(err))
		} else {
			c.publish(snap)
		}

		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-time.After(c.sleep):
		}
	}
}

// publish atomically replaces the latest slot and raises the changed
// flag iff the best price on either side moved — an edge, not a
// level-trigger.
func (c *Collector) publish(snap market.OrderBookSnapshot) {
	prev := c.latest.Load()
	c.latest.Store(&snap)

	if prev == nil {
		c.changed.Store(true)
		return
	}
	prevAsk, prevHasAsk := prev.BestAsk()
	newAsk, newHasAsk := snap.BestAsk()
	prevBid, prevHasBid := prev.BestBid()
	newBid, newHasBid := snap.BestBid()

	askMoved := prevHasAsk != newHasAsk || (newHasAsk && !prevAsk.Price.Equal(newAsk.Price))
	bidMoved := prevHasBid != newHasBid || (newHasBid && !prevBid.Price.Equal(newBid.Price))
	if askMoved || bidMoved {
		c.changed.Store(true)
	}
}

// Latest returns the freshest published snapshot without blocking the
// writer, and whether one has been published yet.
func (c *Collector) Latest() (market.OrderBookSnapshot, bool) {
	p := c.latest.Load()
	if p == nil {
		return market.OrderBookSnapshot{}, false
	}
	return *p, true
}

// ConsumeChanged reads and clears the changed flag atomically — the
// consumer clears it on read.
func (c *Collector) ConsumeChanged() bool {
	return c.changed.Swap(false)
}

// Stop signals the collector to exit before its next sleep and blocks
// until Run has returned.
func (c *Collector) Stop() {
	close(c.stop)
	<-c.done
}
