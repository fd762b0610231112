package venue

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/chidi150c/spotarb/internal/market"
)

// StreamCollector is the reserved interface for push-based order-book
// updates, a STREAM collector mode left unimplemented on purpose: no
// configured dialect in this repo names a stream endpoint yet, so
// nothing constructs or wires a StreamCollector into the dispatch
// loop; it documents the intended shape for a future venue whose
// dialect does.
type StreamCollector interface {
	// Run connects and pushes snapshots to out until ctx is cancelled
	// or the connection fails. A write to out follows the same "latest
	// snapshot, edge-triggered changed flag" slot semantics a REQUEST
	// collector publishes under.
	Run(ctx context.Context, symbol market.Symbol, out chan<- market.OrderBookSnapshot) error
}

// WebsocketStreamCollector is a gorilla/websocket-based skeleton for a
// future StreamCollector implementation, grounded on the pack's
// websocket usage (polymarket-mm). It is unused by the dispatch loop
// today. Run dials URL (returning the dial error if that fails), then
// decodes nothing and sends nothing on out: it blocks until ctx is
// cancelled and returns ctx.Err().
type WebsocketStreamCollector struct {
	URL string
}

func (w *WebsocketStreamCollector) Run(ctx context.Context, symbol market.Symbol, out chan<- market.OrderBookSnapshot) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Reserved: no dialect in this repo defines a stream message
	// schema yet, so there is nothing to decode into
	// market.OrderBookSnapshot. A concrete venue adopting STREAM mode
	// implements its message parsing here.
	<-ctx.Done()
	return ctx.Err()
}
