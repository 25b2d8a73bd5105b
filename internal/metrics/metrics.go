package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Recomputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilmatch_recomputations_total",
			Help: "Total number of match set recomputations by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nilmatch_recompute_duration_seconds",
			Help:    "Duration of full match set recomputation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	PairsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nilmatch_pairs_evaluated_total",
			Help: "Total number of brand/athlete pairs scored",
		},
	)

	MatchSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nilmatch_match_set_size",
			Help: "Number of evaluations in the current match set",
		},
	)

	TopMatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nilmatch_top_matches",
			Help: "Number of evaluations in the current match set scoring 80 or more",
		},
	)

	CatalogSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nilmatch_catalog_size",
			Help: "Number of catalog records by kind",
		},
		[]string{"kind"},
	)
)
