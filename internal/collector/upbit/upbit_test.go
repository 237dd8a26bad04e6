package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/aitrader/internal/core"
)

func TestUpbit_Name(t *testing.T) {
	if New().Name() != "upbit" {
		t.Errorf("expected 'upbit', got '%s'", New().Name())
	}
}

func TestCandlePath(t *testing.T) {
	tests := []struct {
		tf       core.Timeframe
		expected string
	}{
		{core.Timeframe1m, "/v1/candles/minutes/1"},
		{core.Timeframe3m, "/v1/candles/minutes/3"},
		{core.Timeframe10m, "/v1/candles/minutes/10"},
		{core.Timeframe1h, "/v1/candles/minutes/60"},
		{core.Timeframe4h, "/v1/candles/minutes/240"},
		{core.Timeframe1d, "/v1/candles/days"},
	}
	for _, tc := range tests {
		got, err := candlePath(tc.tf)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, got)
	}

	_, err := candlePath("2h")
	assert.ErrorIs(t, err, core.ErrUnsupportedTimeframe)
}

func TestUpbit_Candles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/candles/minutes/60", r.URL.Path)
		assert.Equal(t, "KRW-BTC", r.URL.Query().Get("market"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		w.Write([]byte(`[
			{"market":"KRW-BTC","candle_date_time_utc":"2024-03-01T10:00:00","trade_price":101.5,"candle_acc_trade_volume":3.2},
			{"market":"KRW-BTC","candle_date_time_utc":"2024-03-01T09:00:00","trade_price":100,"candle_acc_trade_volume":1.5}
		]`))
	}))
	defer server.Close()

	samples, err := NewWithBaseURL(server.URL).Candles(context.Background(), "KRW-BTC", core.Timeframe1h, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), samples[0].Time)
	assert.Equal(t, 101.5, samples[0].Price)
	assert.Equal(t, 3.2, samples[0].Volume)
}

func TestUpbit_CandlesPaginates(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var requests []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.RawQuery)
		mu.Unlock()
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))

		newest := start.Add(299 * time.Minute)
		if to := r.URL.Query().Get("to"); to != "" {
			ts, err := time.Parse(time.RFC3339, to)
			assert.NoError(t, err)
			newest = ts.Add(-time.Minute)
		}

		var out []candle
		for i := 0; i < count && !newest.Before(start); i++ {
			out = append(out, candle{
				CandleDateTimeUTC:    newest.Format(candleTimeLayout),
				TradePrice:           float64(newest.Sub(start) / time.Minute),
				CandleAccTradeVolume: 1,
			})
			newest = newest.Add(-time.Minute)
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	samples, err := NewWithBaseURL(server.URL).Candles(context.Background(), "KRW-ETH", core.Timeframe1m, 250)
	require.NoError(t, err)
	require.Len(t, samples, 250)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 2)
	assert.Contains(t, requests[1], "count=50")

	seen := make(map[time.Time]bool)
	for _, s := range samples {
		assert.False(t, seen[s.Time], "duplicate sample at %s", s.Time)
		seen[s.Time] = true
	}
	assert.Equal(t, 299.0, samples[0].Price)
	assert.Equal(t, 50.0, samples[249].Price)
}

func TestUpbit_CandlesShortHistoryStops(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"candle_date_time_utc":"2024-03-01T00:00:00","trade_price":1,"candle_acc_trade_volume":1}]`))
	}))
	defer server.Close()

	samples, err := NewWithBaseURL(server.URL).Candles(context.Background(), "KRW-NEW", core.Timeframe1d, 500)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpbit_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewWithBaseURL(server.URL).Candles(context.Background(), "KRW-BTC", core.Timeframe1m, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestUpbit_Ticker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ticker", r.URL.Path)
		assert.Equal(t, "KRW-BTC,KRW-ETH", r.URL.Query().Get("markets"))
		w.Write([]byte(`[
			{"market":"KRW-BTC","trade_price":90000000,"signed_change_rate":0.012,"acc_trade_volume_24h":1234.5,"timestamp":1709283600000},
			{"market":"KRW-ETH","trade_price":5000000,"signed_change_rate":-0.003,"acc_trade_volume_24h":99,"timestamp":1709283600000}
		]`))
	}))
	defer server.Close()

	tickers, err := NewWithBaseURL(server.URL).Ticker(context.Background(), "KRW-BTC", "KRW-ETH")
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	assert.Equal(t, "KRW-BTC", tickers[0].Market)
	assert.Equal(t, 90000000.0, tickers[0].Price)
	assert.Equal(t, -0.003, tickers[1].ChangeRate)
	assert.Equal(t, time.UnixMilli(1709283600000).UTC(), tickers[0].Time)
}

func TestUpbit_AllTickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ticker/all", r.URL.Path)
		assert.Equal(t, "KRW", r.URL.Query().Get("quote_currencies"))
		w.Write([]byte(`[{"market":"KRW-XRP","trade_price":700,"timestamp":1709283600000}]`))
	}))
	defer server.Close()

	tickers, err := NewWithBaseURL(server.URL).AllTickers(context.Background(), "krw")
	require.NoError(t, err)
	require.Len(t, tickers, 1)
	assert.Equal(t, "KRW-XRP", tickers[0].Market)
}

func TestUpbit_Trades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trades/ticks", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("count"))
		fmt.Fprint(w, `[
			{"market":"KRW-BTC","trade_price":100,"trade_volume":0.5,"ask_bid":"BID","sequential_id":2,"timestamp":1709283601000},
			{"market":"KRW-BTC","trade_price":99,"trade_volume":1.5,"ask_bid":"ASK","sequential_id":1,"timestamp":1709283600000}
		]`)
	}))
	defer server.Close()

	trades, err := NewWithBaseURL(server.URL).Trades(context.Background(), "KRW-BTC", 100)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, core.SideBid, trades[0].Side)
	assert.Equal(t, core.SideAsk, trades[1].Side)
	assert.Equal(t, int64(2), trades[0].SequentialID)
}

func TestUpbit_Markets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"market":"KRW-BTC"},{"market":"BTC-ETH"},{"market":"KRW-ETH"}]`))
	}))
	defer server.Close()

	markets, err := NewWithBaseURL(server.URL).Markets(context.Background(), "KRW")
	require.NoError(t, err)
	assert.Equal(t, []string{"KRW-BTC", "KRW-ETH"}, markets)
}

// Integration test - skip in CI
func TestUpbit_Candles_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	samples, err := New().Candles(context.Background(), "KRW-BTC", core.Timeframe1h, 5)
	if err != nil {
		t.Fatalf("Candles failed: %v", err)
	}
	if len(samples) == 0 {
		t.Error("expected at least one candle")
	}
	for _, s := range samples {
		if s.Price <= 0 {
			t.Errorf("expected positive price, got %f", s.Price)
		}
	}
}
