// Package metrics exposes the Prometheus registry shared by the HTTP API,
// the trend aggregator, the signal router and the alert evaluator.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/newthinker/aitrader/internal/core"
)

const namespace = "aitrader"

// Registry is a private Prometheus registry with the aitrader collectors.
type Registry struct {
	*prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	trendCycles        prometheus.Counter
	trendCycleDuration prometheus.Histogram
	trendPairs         *prometheus.GaugeVec
	trendPairFailures  *prometheus.CounterVec

	signalsGenerated *prometheus.CounterVec
	signalsRouted    *prometheus.CounterVec
	watchlistSize    prometheus.Gauge
	backtests        *prometheus.CounterVec
	alertsFired      *prometheus.CounterVec
}

// NewRegistry registers every collector plus the Go and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		Registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status class.",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests being served.",
		}),

		trendCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "trend", Name: "cycles_total",
			Help: "Published trend cycles.",
		}),
		trendCycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "trend", Name: "cycle_duration_seconds",
			Help: "Trend cycle wall time including the pauses between pairs.",
			// pair pacing makes cycles take seconds to minutes
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		trendPairs: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "trend", Name: "pairs",
			Help: "Pairs in the last published cycle by outcome.",
		}, []string{"outcome"}),
		trendPairFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "trend", Name: "pair_failures_total",
			Help: "Pair computations skipped because of an error.",
		}, []string{"instrument", "timeframe"}),

		signalsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signals", Name: "generated_total",
			Help: "Recommendations produced by strategies.",
		}, []string{"strategy", "action"}),
		signalsRouted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signals", Name: "routed_total",
			Help: "Recommendations seen by the router by outcome.",
		}, []string{"strategy", "action", "status"}),
		watchlistSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "watchlist_instruments",
			Help: "Instruments in the watchlist.",
		}),
		backtests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backtests_total",
			Help: "Finished backtest jobs by status.",
		}, []string{"status"}),
		alertsFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "alerts", Name: "fired_total",
			Help: "Trend alerts fired by rule and severity.",
		}, []string{"rule", "severity"}),
	}
}

// RecordRequest records one served HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(duration)
}

func (r *Registry) InFlightInc() { r.httpInFlight.Inc() }
func (r *Registry) InFlightDec() { r.httpInFlight.Dec() }

// ObserveTrendCycle records a published trend cycle.
func (r *Registry) ObserveTrendCycle(duration time.Duration, computed, failed int) {
	r.trendCycles.Inc()
	r.trendCycleDuration.Observe(duration.Seconds())
	r.trendPairs.WithLabelValues("computed").Set(float64(computed))
	r.trendPairs.WithLabelValues("failed").Set(float64(failed))
}

// ObserveTrendFailure records a skipped pair.
func (r *Registry) ObserveTrendFailure(instrument string, tf core.Timeframe) {
	r.trendPairFailures.WithLabelValues(instrument, string(tf)).Inc()
}

func (r *Registry) RecordSignal(strategy string, action core.Action) {
	r.signalsGenerated.WithLabelValues(strategy, string(action)).Inc()
}

// ObserveSignal records a routing decision.
func (r *Registry) ObserveSignal(strategy string, action core.Action, routed bool) {
	status := "filtered"
	if routed {
		status = "routed"
	}
	r.signalsRouted.WithLabelValues(strategy, string(action), status).Inc()
}

func (r *Registry) SetWatchlistSize(size int) { r.watchlistSize.Set(float64(size)) }

// RecordBacktest records a finished backtest job.
func (r *Registry) RecordBacktest(status string) {
	r.backtests.WithLabelValues(status).Inc()
}

// ObserveAlert records a fired trend alert.
func (r *Registry) ObserveAlert(rule, severity string) {
	r.alertsFired.WithLabelValues(rule, severity).Inc()
}

// statusClass maps 404 to "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
