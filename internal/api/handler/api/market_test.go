package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/pricewatch"
	"github.com/newthinker/aitrader/internal/series"
	"github.com/newthinker/aitrader/internal/strength"
)

type fakeMeter struct{}

func (fakeMeter) Measure(ctx context.Context, market string) (*strength.Report, error) {
	return &strength.Report{Market: market, Windows: []strength.Window{{Ticks: 10, BuyRatio: 60}}}, nil
}

type fakeSeries struct {
	count int
	err   error
}

func (f *fakeSeries) Fetch(ctx context.Context, instrument string, tf core.Timeframe, count int) (*series.Series, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.count = count
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]core.Sample, count)
	for i := range samples {
		samples[i] = core.Sample{Time: start.Add(time.Duration(i) * tf.Duration()), Price: float64(100 + i), Volume: 1}
	}
	return series.New(instrument, tf, samples), nil
}

func trackedPrices() *pricewatch.Tracker {
	tracker := pricewatch.NewTracker(5, nil)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tracker.Observe(core.Ticker{Market: "KRW-BTC", Price: 100, Time: at})
	tracker.Observe(core.Ticker{Market: "KRW-BTC", Price: 110, Time: at.Add(time.Second)})
	tracker.Observe(core.Ticker{Market: "KRW-ETH", Price: 50, Time: at})
	return tracker
}

func marketRequest(path, key, value string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	req.SetPathValue(key, value)
	return req
}

func TestMarketHandler_Prices(t *testing.T) {
	handler := NewMarketHandler(trackedPrices(), fakeMeter{}, &fakeSeries{}, "KRW")

	w := httptest.NewRecorder()
	handler.Prices(w, httptest.NewRequest("GET", "/api/v1/prices", nil))

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["count"] != float64(2) {
		t.Fatalf("expected 2 markets, got %v", data["count"])
	}
	for _, p := range data["prices"].([]any) {
		view := p.(map[string]any)
		switch view["market"] {
		case "KRW-BTC":
			if view["change_pct"] != float64(10) {
				t.Errorf("expected 10%% change, got %v", view["change_pct"])
			}
		case "KRW-ETH":
			if view["change_pct"] != nil {
				t.Errorf("single price has no change, got %v", view["change_pct"])
			}
		}
	}
}

func TestMarketHandler_Price(t *testing.T) {
	handler := NewMarketHandler(trackedPrices(), fakeMeter{}, &fakeSeries{}, "KRW")

	w := httptest.NewRecorder()
	handler.Price(w, marketRequest("/api/v1/prices/btc", "market", "btc"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if history := resp.Data.(map[string]any)["history"].([]any); len(history) != 2 {
		t.Errorf("expected 2 history points, got %d", len(history))
	}

	w = httptest.NewRecorder()
	handler.Price(w, marketRequest("/api/v1/prices/doge", "market", "doge"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestMarketHandler_Strength(t *testing.T) {
	handler := NewMarketHandler(trackedPrices(), fakeMeter{}, &fakeSeries{}, "KRW")

	w := httptest.NewRecorder()
	handler.Strength(w, marketRequest("/api/v1/strength/xrp", "market", "xrp"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.(map[string]any)["market"] != "KRW-XRP" {
		t.Errorf("unexpected report %v", resp.Data)
	}
}

func TestMarketHandler_Indicators(t *testing.T) {
	fetcher := &fakeSeries{}
	handler := NewMarketHandler(trackedPrices(), fakeMeter{}, fetcher, "KRW")

	w := httptest.NewRecorder()
	handler.Indicators(w, marketRequest("/api/v1/markets/KRW-BTC/indicators?timeframe=4h&count=60", "market", "KRW-BTC"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fetcher.count != 60 {
		t.Errorf("expected 60 samples requested, got %d", fetcher.count)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	indicators := data["indicators"].(map[string]any)
	// Prices rise by 1 per sample from 100, so the newest is 159.
	if data["price"] != float64(159) {
		t.Errorf("expected price 159, got %v", data["price"])
	}
	if indicators["sma_short"] != float64(158) {
		t.Errorf("expected sma_short 158, got %v", indicators["sma_short"])
	}
	if indicators["rsi"] != float64(100) {
		t.Errorf("expected rsi 100 on a rising series, got %v", indicators["rsi"])
	}
}

func TestMarketHandler_Indicators_Errors(t *testing.T) {
	handler := NewMarketHandler(trackedPrices(), fakeMeter{}, &fakeSeries{err: core.ErrDataUnavailable}, "KRW")

	w := httptest.NewRecorder()
	handler.Indicators(w, marketRequest("/api/v1/markets/KRW-BTC/indicators", "market", "KRW-BTC"))
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.Indicators(w, marketRequest("/api/v1/markets/KRW-BTC/indicators?count=0", "market", "KRW-BTC"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
