// Package balance implements the Balance Cache: a process-wide,
// per-venue mapping of asset to available amount, refreshed from the
// venue and periodically resynced from the document store.
package balance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/adapter"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/store"
)

// Fetcher is the slice of venue.Adapter the cache needs to refresh
// directly from a venue.
type Fetcher interface {
	FetchBalance(ctx context.Context) (map[market.Asset]decimal.Decimal, *adapter.Error)
}

// Store is the slice of the document store the cache needs for
// write-through/read-through sync against the persisted balance
// collections, plus the append-only balance_history ledger.
type Store interface {
	WriteBalance(ctx context.Context, venue string, balances map[market.Asset]decimal.Decimal) error
	ReadBalance(ctx context.Context, venue string) (map[market.Asset]decimal.Decimal, error)
	AppendBalanceHistory(ctx context.Context, entry store.BalanceHistoryEntry) error
}

// Cache holds one atomically-swapped balance map per venue. Writes
// originate only from the Dispatch Loop goroutine; reads never block
// a concurrent write because a refresh replaces the whole map rather
// than mutating it in place.
type Cache struct {
	slots map[string]*atomic.Pointer[map[market.Asset]decimal.Decimal]
}

// NewCache builds an empty cache for the given venue ids.
func NewCache(venues []string) *Cache {
	c := &Cache{slots: make(map[string]*atomic.Pointer[map[market.Asset]decimal.Decimal], len(venues))}
	for _, v := range venues {
		p := &atomic.Pointer[map[market.Asset]decimal.Decimal]{}
		empty := map[market.Asset]decimal.Decimal{}
		p.Store(&empty)
		c.slots[v] = p
	}
	return c
}

func (c *Cache) slot(venue string) (*atomic.Pointer[map[market.Asset]decimal.Decimal], error) {
	p, ok := c.slots[venue]
	if !ok {
		return nil, fmt.Errorf("balance: unknown venue %q", venue)
	}
	return p, nil
}

// Get returns the available amount of asset on venue, and whether the
// venue/asset pair is known at all.
func (c *Cache) Get(venue string, asset market.Asset) (decimal.Decimal, bool) {
	p, err := c.slot(venue)
	if err != nil {
		return decimal.Zero, false
	}
	m := *p.Load()
	v, ok := m[asset]
	return v, ok
}

// Snapshot returns a read-only copy of venue's current balance map.
func (c *Cache) Snapshot(venue string) map[market.Asset]decimal.Decimal {
	p, err := c.slot(venue)
	if err != nil {
		return nil
	}
	m := *p.Load()
	out := make(map[market.Asset]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RefreshFromVenue fetches venue's balances from the adapter, swaps
// them in, writes through to the document store, and appends one
// balance_history row per asset so the ledger has a record of every
// refresh timestamp.
func (c *Cache) RefreshFromVenue(ctx context.Context, venue string, fetcher Fetcher, st Store) error {
	p, err := c.slot(venue)
	if err != nil {
		return err
	}
	bal, aerr := fetcher.FetchBalance(ctx)
	if aerr != nil {
		return fmt.Errorf("balance: refresh %q from venue: %w", venue, aerr)
	}
	p.Store(&bal)
	if st != nil {
		if err := st.WriteBalance(ctx, venue, bal); err != nil {
			return fmt.Errorf("balance: write-through %q: %w", venue, err)
		}
		now := time.Now()
		for asset, amount := range bal {
			if err := st.AppendBalanceHistory(ctx, store.BalanceHistoryEntry{
				Venue: venue, Asset: asset, Amount: amount, Timestamp: now,
			}); err != nil {
				return fmt.Errorf("balance: history append %q/%s: %w", venue, asset, err)
			}
		}
	}
	return nil
}

// RefreshFromStore reads venue's mirrored balance from the document
// store and swaps it in — the 1,000-tick read-through resync. It does
// not append to balance_history: the ledger records refreshes at their
// source of truth (the venue), not every downstream cache resync.
func (c *Cache) RefreshFromStore(ctx context.Context, venue string, st Store) error {
	p, err := c.slot(venue)
	if err != nil {
		return err
	}
	bal, err := st.ReadBalance(ctx, venue)
	if err != nil {
		return fmt.Errorf("balance: refresh %q from store: %w", venue, err)
	}
	p.Store(&bal)
	return nil
}

// Debit subtracts amount of asset from venue's cached balance after a
// successful fill: on a fill, the Trade Controller debits the two
// assets by exactly the quantities traded. It replaces the whole map
// rather than mutating the previous one in place, preserving the
// snapshot-swap discipline for any concurrent reader.
func (c *Cache) Debit(venue string, asset market.Asset, amount decimal.Decimal) error {
	p, err := c.slot(venue)
	if err != nil {
		return err
	}
	prev := *p.Load()
	next := make(map[market.Asset]decimal.Decimal, len(prev))
	for k, v := range prev {
		next[k] = v
	}
	next[asset] = next[asset].Sub(amount)
	p.Store(&next)
	return nil
}

// Credit adds amount of asset to venue's cached balance — used for
// the opposite leg of a trade (the asset received, not spent).
func (c *Cache) Credit(venue string, asset market.Asset, amount decimal.Decimal) error {
	p, err := c.slot(venue)
	if err != nil {
		return err
	}
	prev := *p.Load()
	next := make(map[market.Asset]decimal.Decimal, len(prev))
	for k, v := range prev {
		next[k] = v
	}
	next[asset] = next[asset].Add(amount)
	p.Store(&next)
	return nil
}
