// Command worker is the spotarb process entrypoint: one instance runs
// one (market, venue-pair) configuration end to end — flags, env/config
// load, adapter wiring, a Prometheus /healthz+/metrics server, and a
// signal-driven graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chidi150c/spotarb/internal/balance"
	"github.com/chidi150c/spotarb/internal/collector"
	"github.com/chidi150c/spotarb/internal/config"
	"github.com/chidi150c/spotarb/internal/dispatch"
	"github.com/chidi150c/spotarb/internal/engine"
	"github.com/chidi150c/spotarb/internal/logging"
	"github.com/chidi150c/spotarb/internal/market"
	"github.com/chidi150c/spotarb/internal/store"
	"github.com/chidi150c/spotarb/internal/venue"
	"github.com/chidi150c/spotarb/internal/venue/restvenue"
	"github.com/chidi150c/spotarb/internal/venue/simulate"
)

func main() {
	var (
		worker      string
		settingsDir string
		simulateRun bool
		logLevel    string
		port        int
	)
	flag.StringVar(&worker, "worker", "", "settings file name (without .json) under -settings-dir")
	flag.StringVar(&settingsDir, "settings-dir", "./settings", "directory holding <worker>.json settings files")
	flag.BoolVar(&simulateRun, "simulate", false, "use in-memory simulated venues and an in-memory store instead of real adapters/MongoDB")
	flag.StringVar(&logLevel, "loglevel", "info", "debug|info|error")
	flag.IntVar(&port, "port", 9090, "HTTP port for /healthz and /metrics")
	flag.Parse()

	if worker == "" {
		fmt.Fprintln(os.Stderr, "worker: -worker is required")
		os.Exit(1)
	}

	log, err := logging.New(logging.Level(logLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	settings, err := config.Load(settingsDir, worker)
	if err != nil {
		log.Fatal("loading settings", zap.Error(err))
	}

	symbol, err := market.ParseSymbol(settings.Market)
	if err != nil {
		log.Fatal("parsing market symbol", zap.String("market", settings.Market), zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	venueAID, venueBID := settings.VenueExchanges()
	registry := venue.NewRegistry(simulateRun, knownDialects)

	adapterA, err := registry.Resolve(venueAID)
	if err != nil {
		log.Fatal("resolving venue adapter", zap.String("venue", venueAID), zap.Error(err))
	}
	adapterB, err := registry.Resolve(venueBID)
	if err != nil {
		log.Fatal("resolving venue adapter", zap.String("venue", venueBID), zap.Error(err))
	}

	if simulateRun {
		seedSimulated(adapterA, symbol)
		seedSimulated(adapterB, symbol)
	}

	metaA := resolveMeta(ctx, adapterA, symbol, settings, log)
	metaB := resolveMeta(ctx, adapterB, symbol, settings, log)
	feesA := resolveFees(ctx, adapterA, symbol, log)
	feesB := resolveFees(ctx, adapterB, symbol, log)

	var tradeStore store.TradeStore
	if simulateRun {
		tradeStore = store.NewMemory()
	} else {
		uri := strings.TrimSpace(os.Getenv("SPOTARB_MONGO_URI"))
		dbName := strings.TrimSpace(os.Getenv("SPOTARB_MONGO_DB"))
		if uri == "" || dbName == "" {
			log.Fatal("SPOTARB_MONGO_URI and SPOTARB_MONGO_DB are required outside -simulate")
		}
		mongoStore, disconnect, err := store.Dial(ctx, uri, dbName)
		if err != nil {
			log.Fatal("dialing mongo", zap.Error(err))
		}
		defer disconnect(context.Background()) //nolint:errcheck
		tradeStore = mongoStore
	}

	cache := balance.NewCache([]string{venueAID, venueBID})
	if err := cache.RefreshFromVenue(ctx, venueAID, adapterA, tradeStore); err != nil {
		log.Warn("initial balance refresh failed", zap.String("venue", venueAID), zap.Error(err))
	}
	if err := cache.RefreshFromVenue(ctx, venueBID, adapterB, tradeStore); err != nil {
		log.Warn("initial balance refresh failed", zap.String("venue", venueBID), zap.Error(err))
	}

	sleepA := venueSleep(settings, venueAID)
	sleepB := venueSleep(settings, venueBID)
	colA := collector.New(venueAID, symbol, adapterA, sleepA, 0, log)
	colB := collector.New(venueBID, symbol, adapterB, sleepB, 0, log)
	go colA.Run(ctx)
	go colB.Run(ctx)
	defer colA.Stop()
	defer colB.Stop()

	th := engine.Thresholds{
		MinBaseQty:       config.DecimalOrDefault(settings.MinBaseQty, decimal.Zero),
		MinQuoteQty:      config.DecimalOrDefault(settings.MinQuoteQty, decimal.Zero),
		BasePrecision:    settings.BasePrecision,
		QuotePrecision:   settings.QuotePrecision,
		MinProfitPercent: stricterOf(settings, venueAID, venueBID, true),
		MinProfitAmount:  stricterOf(settings, venueAID, venueBID, false),
	}

	loop := dispatch.NewLoop(symbol, settings.Market,
		dispatch.VenueContext{ID: venueAID, Adapter: adapterA, Collector: colA, Meta: metaA, Fees: feesA},
		dispatch.VenueContext{ID: venueBID, Adapter: adapterB, Collector: colB, Meta: metaB, Fees: feesB},
		cache, tradeStore, th, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		log.Info("serving metrics", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	log.Info("worker starting", zap.String("market", settings.Market), zap.String("venue_a", venueAID), zap.String("venue_b", venueBID))
	loop.Run(ctx)

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

// knownDialects registers the real-venue dialects this build knows
// how to speak. Every venue id in a settings file's "exchanges" list
// must resolve here when not running -simulate.
func knownDialects(venueID string) (restvenue.Dialect, error) {
	switch strings.ToLower(venueID) {
	case "coinbase":
		return restvenue.NewCoinbaseStyleDialect("https://api.coinbase.com", nil), nil
	default:
		return nil, fmt.Errorf("no dialect registered for venue %q", venueID)
	}
}

// seedSimulated bootstraps a --simulate adapter with a modest starting
// balance and a non-crossed order book so the dispatch loop has
// something to evaluate on the very first tick.
func seedSimulated(a venue.Adapter, symbol market.Symbol) {
	sim, ok := a.(*simulate.Adapter)
	if !ok {
		return
	}
	sim.SeedBalance(symbol.Base, decimal.NewFromInt(10))
	sim.SeedBalance(symbol.Quote, decimal.NewFromInt(1000000))
	sim.SetOrderBook(symbol, market.OrderBookSnapshot{
		Symbol: symbol,
		Venue:  sim.Name(),
		Asks:   []market.OrderBookLevel{{Price: decimal.NewFromInt(100), Qty: decimal.NewFromInt(5)}},
		Bids:   []market.OrderBookLevel{{Price: decimal.NewFromInt(99), Qty: decimal.NewFromInt(5)}},
	})
}

func resolveMeta(ctx context.Context, a venue.Adapter, symbol market.Symbol, settings *config.Settings, log *zap.Logger) market.MarketMeta {
	metas, aerr := a.FetchMarkets(ctx)
	if aerr == nil {
		for _, m := range metas {
			if m.Symbol == symbol {
				return m
			}
		}
		log.Fatal("market symbol not listed by venue", zap.String("venue", a.Name()), zap.String("market", symbol.String()))
	} else {
		log.Warn("fetch_markets failed, using settings-derived precisions", zap.String("venue", a.Name()), zap.Error(aerr))
	}
	return market.MarketMeta{
		Symbol:         symbol,
		MinBaseQty:     config.DecimalOrDefault(settings.MinBaseQty, decimal.Zero),
		MinQuoteQty:    config.DecimalOrDefault(settings.MinQuoteQty, decimal.Zero),
		BasePrecision:  settings.BasePrecision,
		QuotePrecision: settings.QuotePrecision,
		PricePrecision: settings.QuotePrecision,
	}
}

func resolveFees(ctx context.Context, a venue.Adapter, symbol market.Symbol, log *zap.Logger) market.FeeSchedule {
	fees, aerr := a.FetchFees(ctx, symbol)
	if aerr != nil {
		log.Warn("fetch_fees failed, falling back to zero fee schedule", zap.String("venue", a.Name()), zap.Error(aerr))
		return market.FeeSchedule{MakerRate: decimal.Zero, TakerRate: decimal.Zero}
	}
	return fees
}

func venueSleep(settings *config.Settings, venueID string) time.Duration {
	if vs, ok := settings.Settings[venueID]; ok && vs.SleepTime > 0 {
		return time.Duration(vs.SleepTime * float64(time.Second))
	}
	if settings.SleepTime > 0 {
		return time.Duration(settings.SleepTime * float64(time.Second))
	}
	return time.Second
}

// stricterOf picks the more conservative of the two venues' configured
// profit thresholds — trading only when BOTH configured guards would
// independently be satisfied. percent selects min_profit_perc when
// true, min_profit_amount when false.
func stricterOf(settings *config.Settings, venueAID, venueBID string, percent bool) decimal.Decimal {
	a := thresholdField(settings, venueAID, percent)
	b := thresholdField(settings, venueBID, percent)
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func thresholdField(settings *config.Settings, venueID string, percent bool) decimal.Decimal {
	vs, ok := settings.Settings[venueID]
	if !ok {
		return decimal.Zero
	}
	if percent {
		return config.DecimalOrDefault(vs.MinProfitPerc, decimal.Zero)
	}
	return config.DecimalOrDefault(vs.MinProfitAmount, decimal.Zero)
}
