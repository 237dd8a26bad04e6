package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/aitrader/internal/core"
)

func TestNewRegistry_Gathers(t *testing.T) {
	reg := NewRegistry()
	reg.RecordRequest("GET", "/api/v1/trends", 200, 0.01)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["aitrader_http_requests_total"])
	assert.True(t, names["aitrader_http_request_duration_seconds"])
	assert.True(t, names["go_goroutines"], "runtime collector registered")
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		100: "1xx", 200: "2xx", 201: "2xx", 301: "3xx",
		404: "4xx", 422: "4xx", 503: "5xx", 0: "other", 700: "other",
	}
	for status, want := range tests {
		assert.Equal(t, want, statusClass(status), "status %d", status)
	}
}

func TestRegistry_RecordRequest(t *testing.T) {
	reg := NewRegistry()
	reg.RecordRequest("GET", "/api/v1/signals", 200, 0.05)
	reg.RecordRequest("GET", "/api/v1/signals", 204, 0.05)
	reg.RecordRequest("GET", "/api/v1/signals", 502, 0.05)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "/api/v1/signals", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("GET", "/api/v1/signals", "5xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpDuration))
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()
	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpInFlight))
}

func TestRegistry_TrendObserver(t *testing.T) {
	reg := NewRegistry()

	reg.ObserveTrendCycle(42*time.Second, 9, 1)
	reg.ObserveTrendFailure("KRW-XRP", core.Timeframe1h)
	reg.ObserveTrendFailure("KRW-XRP", core.Timeframe1h)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.trendCycles))
	assert.Equal(t, 9.0, testutil.ToFloat64(reg.trendPairs.WithLabelValues("computed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.trendPairs.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.trendPairFailures.WithLabelValues("KRW-XRP", "1h")))

	err := testutil.CollectAndCompare(reg.trendCycleDuration, strings.NewReader(`
# HELP aitrader_trend_cycle_duration_seconds Trend cycle wall time including the pauses between pairs.
# TYPE aitrader_trend_cycle_duration_seconds histogram
aitrader_trend_cycle_duration_seconds_bucket{le="1"} 0
aitrader_trend_cycle_duration_seconds_bucket{le="5"} 0
aitrader_trend_cycle_duration_seconds_bucket{le="10"} 0
aitrader_trend_cycle_duration_seconds_bucket{le="30"} 0
aitrader_trend_cycle_duration_seconds_bucket{le="60"} 1
aitrader_trend_cycle_duration_seconds_bucket{le="120"} 1
aitrader_trend_cycle_duration_seconds_bucket{le="300"} 1
aitrader_trend_cycle_duration_seconds_bucket{le="600"} 1
aitrader_trend_cycle_duration_seconds_bucket{le="+Inf"} 1
aitrader_trend_cycle_duration_seconds_sum 42
aitrader_trend_cycle_duration_seconds_count 1
`))
	assert.NoError(t, err)
}

func TestRegistry_SignalsAndJobs(t *testing.T) {
	reg := NewRegistry()

	reg.RecordSignal("vwma_cross", core.ActionBuy)
	reg.ObserveSignal("vwma_cross", core.ActionBuy, true)
	reg.ObserveSignal("vwma_cross", core.ActionHold, false)
	reg.SetWatchlistSize(4)
	reg.RecordBacktest("complete")
	reg.ObserveAlert("steep", "warning")
	reg.ObserveAlert("steep", "warning")

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.signalsGenerated.WithLabelValues("vwma_cross", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.signalsRouted.WithLabelValues("vwma_cross", "buy", "routed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.signalsRouted.WithLabelValues("vwma_cross", "hold", "filtered")))
	assert.Equal(t, 4.0, testutil.ToFloat64(reg.watchlistSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.backtests.WithLabelValues("complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.alertsFired.WithLabelValues("steep", "warning")))
}
