// Package adapter defines the error type every Venue Adapter method
// returns instead of propagating a raw error across the engine
// boundary: adapters never let an exception escape outward.
package adapter

import "fmt"

// Kind classifies why a venue call failed.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindRateLimit  Kind = "rate_limit"
	KindVenue      Kind = "venue"    // venue-application-level rejection
	KindNotFound   Kind = "not_found"
	KindTimeout    Kind = "timeout"
)

// Error is the single error type that crosses the Venue Adapter
// boundary. Every adapter method that can fail returns its result
// alongside an *Error, wrapping any lower-level error in one of these
// instead of letting it escape raw.
type Error struct {
	Kind    Kind
	Venue   string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("adapter[%s]: %s: %s: %v", e.Venue, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("adapter[%s]: %s: %s", e.Venue, e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for the given venue/operation.
func New(venue, op string, kind Kind, err error) *Error {
	return &Error{Venue: venue, Op: op, Kind: kind, Err: err}
}

// Retryable reports whether the failure's Kind is a transient one
// (network, rate limit, timeout). It does not look at the operation;
// adapters check the method themselves and retry only idempotent GETs,
// so POSTs/DELETEs execute at most once.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindTimeout:
		return true
	default:
		return false
	}
}
