// Package metrics declares the prometheus collectors shared by the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ImageryRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoguess_imagery_requests_total",
		Help: "Imagery provider requests by operation and status",
	}, []string{"op", "status"})
	ImageryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoguess_imagery_duration_ms",
		Help:    "Imagery provider call duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"op"})
	CoverageCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoguess_coverage_cache_hits_total",
		Help: "Coverage lookups answered from redis",
	})
	CoverageCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoguess_coverage_cache_misses_total",
		Help: "Coverage lookups forwarded to the provider",
	})
	SampleOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoguess_sample_outcomes_total",
		Help: "Region sampler results by outcome",
	}, []string{"outcome"})
	SampleChecks = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoguess_sample_checks",
		Help:    "Imagery checks spent per sample",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 150},
	})
	RoundsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoguess_rounds_started_total",
		Help: "Rounds started",
	})
	NavigationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoguess_navigations_total",
		Help: "Navigation requests by result",
	}, []string{"result"})
	AnswersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoguess_answers_total",
		Help: "Answers by result",
	}, []string{"result"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoguess_active_sessions",
		Help: "Sessions held in the registry",
	})
)

func init() {
	prometheus.MustRegister(ImageryRequestsTotal)
	prometheus.MustRegister(ImageryDurationMs)
	prometheus.MustRegister(CoverageCacheHitsTotal)
	prometheus.MustRegister(CoverageCacheMissesTotal)
	prometheus.MustRegister(SampleOutcomesTotal)
	prometheus.MustRegister(SampleChecks)
	prometheus.MustRegister(RoundsStartedTotal)
	prometheus.MustRegister(NavigationsTotal)
	prometheus.MustRegister(AnswersTotal)
	prometheus.MustRegister(ActiveSessions)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
