// Package config loads and validates the per-worker JSON settings
// file, via Viper the way env.go/config.go load their .env-backed
// Config — except every recognised key is enumerated in a struct and
// unknown keys are rejected at load, rather than read ad hoc through
// untyped getters.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// CollectorMode selects how a Book Collector obtains order-book
// updates for its venue.
type CollectorMode string

const (
	CollectorRequest CollectorMode = "request"
	CollectorStream  CollectorMode = "stream"
)

// VenueSettings is the per-venue block of the settings file.
type VenueSettings struct {
	CollectorType       CollectorMode `mapstructure:"collector_type"`
	SleepTime           float64       `mapstructure:"sleep_time"`
	MinProfitPerc       string        `mapstructure:"min_profit_perc"`
	MinProfitAmount     string        `mapstructure:"min_profit_amount"`
	LayeredQuoteQtyCalc bool          `mapstructure:"layered_quote_qty_calc"`
	AuthEndpoints       bool          `mapstructure:"auth_endpoints"`
}

// Settings is the fully parsed settings file for one worker.
type Settings struct {
	Market    string                   `mapstructure:"market"`
	Exchanges []string                 `mapstructure:"exchanges"`
	Settings  map[string]VenueSettings `mapstructure:"settings"`

	MinBaseQty     string `mapstructure:"min_base_qty"`
	MinQuoteQty    string `mapstructure:"min_quote_qty"`
	BasePrecision  int32  `mapstructure:"base_precision"`
	QuotePrecision int32  `mapstructure:"quote_precision"`

	PerformanceMode bool    `mapstructure:"performance_mode"`
	SleepTime       float64 `mapstructure:"sleep_time"`
	LogContinuously bool    `mapstructure:"log_continuously"`

	// MongoURI and Mongo database/collection names are not part of
	// the per-worker settings-file schema; they are ambient
	// infrastructure config and are always read from the environment
	// instead (SPOTARB_MONGO_URI/SPOTARB_MONGO_DB in cmd/worker/main.go),
	// keeping this struct a pure mirror
	// of the JSON document on disk.
}

// Load reads "<settingsDir>/<worker>.json" and decodes it against
// Settings, failing on any key the struct does not recognise.
func Load(settingsDir, worker string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(settingsDir, worker+".json"))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading settings for worker %q: %w", worker, err)
	}

	var s Settings
	if err := v.UnmarshalExact(&s); err != nil {
		return nil, fmt.Errorf("config: settings for worker %q has unrecognised keys: %w", worker, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config: settings for worker %q failed validation: %w", worker, err)
	}
	return &s, nil
}

// Validate enforces the settings document's structural requirements:
// a market symbol, exactly two distinct exchange ids, and a per-venue
// settings block with a recognised collector type for each. Whether
// the symbol actually exists on both venues is checked one layer up,
// once FetchMarkets results are available — this only validates the
// document itself.
func (s *Settings) Validate() error {
	if s.Market == "" {
		return fmt.Errorf("market is required")
	}
	if len(s.Exchanges) != 2 {
		return fmt.Errorf("exchanges must list exactly two venue ids, got %d", len(s.Exchanges))
	}
	if s.Exchanges[0] == s.Exchanges[1] {
		return fmt.Errorf("exchanges must name two distinct venues, got %q twice", s.Exchanges[0])
	}
	for _, id := range s.Exchanges {
		vs, ok := s.Settings[id]
		if !ok {
			return fmt.Errorf("missing per-venue settings block for exchange %q", id)
		}
		if vs.CollectorType != CollectorRequest && vs.CollectorType != CollectorStream {
			return fmt.Errorf("exchange %q: collector_type must be \"request\" or \"stream\", got %q", id, vs.CollectorType)
		}
	}
	return nil
}

// DecimalOrDefault parses a settings string field as decimal,
// returning def when the field was left empty (the JSON schema treats
// min_base_qty/min_quote_qty as optional overrides).
func DecimalOrDefault(raw string, def decimal.Decimal) decimal.Decimal {
	if raw == "" {
		return def
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	return v
}

// VenueExchanges returns the two configured venue ids in
// settings-file order: exchanges[0], exchanges[1]. The caller decides
// which plays ASK and which plays BID per tick — that assignment is
// not static, since either venue may hold the cheaper ask on a given
// tick.
func (s *Settings) VenueExchanges() (first, second string) {
	return s.Exchanges[0], s.Exchanges[1]
}
