package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/market"
)

// Memory is an in-memory TradeStore backing --simulate runs and
// tests; it has no durability guarantees across restarts.
type Memory struct {
	mu          sync.Mutex
	trades      []TradeRecord
	balances    map[string]map[market.Asset]decimal.Decimal
	history     []BalanceHistoryEntry
	marketPairs map[string]marketPairDoc
}

type marketPairDoc struct {
	FirstRun time.Time
	LastRun  time.Time
}

func NewMemory() *Memory {
	return &Memory{
		balances:    make(map[string]map[market.Asset]decimal.Decimal),
		marketPairs: make(map[string]marketPairDoc),
	}
}

func (m *Memory) InsertTrade(_ context.Context, rec TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, rec)
	return nil
}

func (m *Memory) Trades() []TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

func (m *Memory) WriteBalance(_ context.Context, venue string, balances map[market.Asset]decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[market.Asset]decimal.Decimal, len(balances))
	for k, v := range balances {
		cp[k] = v
	}
	m.balances[venue] = cp
	return nil
}

func (m *Memory) ReadBalance(_ context.Context, venue string) (map[market.Asset]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[market.Asset]decimal.Decimal, len(m.balances[venue]))
	for k, v := range m.balances[venue] {
		cp[k] = v
	}
	return cp, nil
}

func (m *Memory) AppendBalanceHistory(_ context.Context, entry BalanceHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entry)
	return nil
}

func (m *Memory) UpsertMarketPair(_ context.Context, key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.marketPairs[key]
	if !ok {
		doc.FirstRun = now
	}
	doc.LastRun = now
	m.marketPairs[key] = doc
	return nil
}

var _ TradeStore = (*Memory)(nil)
