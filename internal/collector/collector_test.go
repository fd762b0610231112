package collector_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/collector"
	"github.com/chidi150c/spotarb/internal/market"
)

type scriptedFetcher struct {
	mu    sync.Mutex
	snaps []market.OrderBookSnapshot
	calls int
}

func (f *scriptedFetcher) FetchOrderBook(_ context.Context, _ market.Symbol, _ int) (market.OrderBookSnapshot, *adapter.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	f.calls++
	return f.snaps[i], nil
}

func sym() market.Symbol { return market.Symbol{Base: "BTC", Quote: "USDT"} }

func book(ask, bid string) market.OrderBookSnapshot {
	return market.OrderBookSnapshot{
		Symbol: sym(),
		Asks:   []market.OrderBookLevel{{Price: decimal.RequireFromString(ask), Qty: decimal.RequireFromString("1")}},
		Bids:   []market.OrderBookLevel{{Price: decimal.RequireFromString(bid), Qty: decimal.RequireFromString("1")}},
	}
}

func TestCollector_PublishesAndFlagsFirstSnapshot(t *testing.T) {
	fetcher := &scriptedFetcher{snaps: []market.OrderBookSnapshot{
		book("100", "99"),
		book("100", "99"),
		book("101", "99"),
	}}
	c := collector.New("venA", sym(), fetcher, time.Millisecond, 10, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		_, ok := c.Latest()
		return ok
	}, 20*time.Millisecond, time.Millisecond)

	assert.True(t, c.ConsumeChanged(), "first publish always raises changed")
}

func TestCollector_Stop(t *testing.T) {
	fetcher := &scriptedFetcher{snaps: []market.OrderBookSnapshot{book("100", "99")}}
	c := collector.New("venA", sym(), fetcher, time.Hour, 10, zap.NewNop())

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := c.Latest()
		return ok
	}, 50*time.Millisecond, time.Millisecond)

	c.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestCollector_ConsumeChanged_ClearsFlag(t *testing.T) {
	fetcher := &scriptedFetcher{snaps: []market.OrderBookSnapshot{book("100", "99")}}
	c := collector.New("venA", sym(), fetcher, time.Hour, 10, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		_, ok := c.Latest()
		return ok
	}, 20*time.Millisecond, time.Millisecond)

	assert.True(t, c.ConsumeChanged())
	assert.False(t, c.ConsumeChanged(), "flag must clear on read")
}
