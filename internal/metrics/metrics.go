// Package metrics exposes the Prometheus series the Dispatch Loop and
// Trade Controller update: CounterVec/GaugeVec definitions registered
// in init() and served over /metrics by the HTTP server in cmd/worker.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DecisionsTotal counts every Opportunity Engine evaluation,
	// labeled by its stable reason code: SAME_VENUE, INSUFFICIENT_BASE,
	// INSUFFICIENT_QUOTE, NO_ARBITRAGE, BELOW_MIN_BASE, BELOW_MIN_QUOTE,
	// BELOW_MIN_PROFIT, ACCEPTED.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotarb_decisions_total",
			Help: "Opportunity Engine decisions by reason code.",
		},
		[]string{"reason"},
	)

	// TradesTotal counts trades by terminal state: SUCCESS, PARTIAL,
	// ABORTED.
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotarb_trades_total",
			Help: "Trades by terminal state.",
		},
		[]string{"state"},
	)

	// SkippedTicksGauge tracks the current run of consecutive
	// changed-flag ticks the dispatch loop skipped because a venue's
	// collector had not yet published a snapshot, reset to zero once
	// both venues have one.
	SkippedTicksGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotarb_skipped_ticks",
			Help: "Consecutive dispatch loop ticks skipped because a venue had no published snapshot yet.",
		},
	)

	// OpportunityProfitPercent observes the profit_perc of every
	// accepted opportunity before placement.
	OpportunityProfitPercent = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotarb_opportunity_profit_percent",
			Help:    "Distribution of accepted opportunities' expected profit percentage.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// BalanceRefreshTotal counts Balance Cache refreshes by venue and
	// source (venue|store).
	BalanceRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotarb_balance_refresh_total",
			Help: "Balance Cache refreshes by venue and source.",
		},
		[]string{"venue", "source"},
	)
)

func init() {
	prometheus.MustRegister(DecisionsTotal, TradesTotal, SkippedTicksGauge, OpportunityProfitPercent, BalanceRefreshTotal)
}
