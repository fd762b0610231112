package venue

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chidi150c/spotarb/internal/config"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/signer"
	"github.com/chidi150c/spotarb/internal/venue/restvenue"
	"github.com/chidi150c/spotarb/internal/venue/simulate"
)

// DialectFactory builds a restvenue.Dialect for one venue id. Callers
// register the concrete dialects their settings files may reference;
// this keeps Registry from hard-coding a fixed venue list.
type DialectFactory func(venueID string) (restvenue.Dialect, error)

// Registry resolves a configured venue id to a constructed Adapter,
// reading credentials from the config package — a config module keyed
// by venue id, loaded from the environment.
type Registry struct {
	simulate bool
	dialects DialectFactory
}

// NewRegistry builds a Registry. When simulateMode is true every
// venue id resolves to an in-memory simulate.Adapter instead of a
// signed REST client, regardless of dialects.
func NewRegistry(simulateMode bool, dialects DialectFactory) *Registry {
	return &Registry{simulate: simulateMode, dialects: dialects}
}

// Resolve constructs the Adapter for venueID.
func (r *Registry) Resolve(venueID string) (Adapter, error) {
	if r.simulate {
		return simulate.New(venueID, nil, market.FeeSchedule{MakerRate: decimal.Zero, TakerRate: decimal.Zero}), nil
	}

	creds, err := config.LoadCredentials(venueID)
	if err != nil {
		return nil, fmt.Errorf("venue: %w", err)
	}

	dialect, err := r.dialects(venueID)
	if err != nil {
		return nil, fmt.Errorf("venue: no dialect registered for %q: %w", venueID, err)
	}

	hmac, err := signer.NewHMACSigner(signer.HMACConfig{
		APIKey:     creds.APIKey,
		Secret:     creds.APISecret,
		Passphrase: creds.Passphrase,
	})
	if err != nil {
		return nil, fmt.Errorf("venue: building signer for %q: %w", venueID, err)
	}

	return restvenue.New(venueID, dialect, hmac), nil
}
