package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/trend"
)

type fakeComputer struct {
	summary trend.Summary
	err     error
	calls   int
}

func (f *fakeComputer) Trend(ctx context.Context, instrument string, tf core.Timeframe) (trend.Summary, error) {
	f.calls++
	sum := f.summary
	sum.Instrument, sum.Timeframe = instrument, tf
	return sum, f.err
}

func ptr(v float64) *float64 { return &v }

func publishedBoard() *trend.Board {
	board := trend.NewBoard()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	board.Publish(&trend.Snapshot{
		Cycle:       3,
		GeneratedAt: at,
		Trends: map[string]map[core.Timeframe]trend.Summary{
			"KRW-BTC": {
				core.Timeframe1h: {Instrument: "KRW-BTC", Timeframe: core.Timeframe1h, Slope: ptr(0.5), AngleDegrees: ptr(26.5), Label: trend.LabelBullish},
				core.Timeframe4h: {Instrument: "KRW-BTC", Timeframe: core.Timeframe4h, Label: trend.LabelNone},
			},
			"KRW-ETH": {
				core.Timeframe1h: {Instrument: "KRW-ETH", Timeframe: core.Timeframe1h, Slope: ptr(-0.1), AngleDegrees: ptr(-5.7), Label: trend.LabelBearish},
			},
		},
		Failures: []trend.Failure{},
	})
	return board
}

func getTrend(handler *TrendsHandler, instrument, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/v1/trends/"+instrument+query, nil)
	req.SetPathValue("instrument", instrument)
	w := httptest.NewRecorder()
	handler.Get(w, req)
	return w
}

func TestTrendsHandler_List(t *testing.T) {
	handler := NewTrendsHandler(publishedBoard(), &fakeComputer{}, "KRW")

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/v1/trends", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["cycle"] != float64(3) {
		t.Errorf("expected cycle 3, got %v", data["cycle"])
	}
	if got := len(data["trends"].(map[string]any)); got != 2 {
		t.Errorf("expected 2 instruments, got %d", got)
	}
}

func TestTrendsHandler_List_Empty(t *testing.T) {
	handler := NewTrendsHandler(trend.NewBoard(), &fakeComputer{}, "KRW")

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/v1/trends", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["cycle"] != float64(0) || len(data["trends"].(map[string]any)) != 0 {
		t.Errorf("expected empty snapshot, got %v", data)
	}
}

func TestTrendsHandler_List_Label(t *testing.T) {
	handler := NewTrendsHandler(publishedBoard(), &fakeComputer{}, "KRW")

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/v1/trends?label=bearish", nil))

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	trends := resp.Data.(map[string]any)["trends"].(map[string]any)
	if len(trends) != 1 || trends["KRW-ETH"] == nil {
		t.Errorf("expected only KRW-ETH, got %v", trends)
	}
}

func TestTrendsHandler_Get(t *testing.T) {
	handler := NewTrendsHandler(publishedBoard(), &fakeComputer{}, "KRW")

	w := getTrend(handler, "btc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["instrument"] != "KRW-BTC" || len(data["trends"].(map[string]any)) != 2 {
		t.Errorf("unexpected body %v", data)
	}

	w = getTrend(handler, "KRW-BTC", "?timeframe=1h")
	json.Unmarshal(w.Body.Bytes(), &resp)
	data = resp.Data.(map[string]any)
	if data["label"] != "bullish" || data["slope"] != 0.5 {
		t.Errorf("unexpected summary %v", data)
	}

	w = getTrend(handler, "KRW-BTC", "?timeframe=4h")
	json.Unmarshal(w.Body.Bytes(), &resp)
	if data = resp.Data.(map[string]any); data["slope"] != nil {
		t.Errorf("expected null slope, got %v", data["slope"])
	}
}

func TestTrendsHandler_Get_NotFound(t *testing.T) {
	handler := NewTrendsHandler(publishedBoard(), &fakeComputer{}, "KRW")

	if w := getTrend(handler, "KRW-XRP", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown instrument, got %d", w.Code)
	}
	if w := getTrend(handler, "KRW-ETH", "?timeframe=1d"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown pair, got %d", w.Code)
	}
	if w := getTrend(handler, "KRW-ETH", "?timeframe=2h"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad timeframe, got %d", w.Code)
	}
}

func TestTrendsHandler_Get_Live(t *testing.T) {
	computer := &fakeComputer{summary: trend.Summary{Label: trend.LabelWeakBullish}}
	handler := NewTrendsHandler(publishedBoard(), computer, "KRW")

	w := getTrend(handler, "KRW-XRP", "?timeframe=15m&live=true")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if computer.calls != 1 {
		t.Errorf("expected one live computation, got %d", computer.calls)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["instrument"] != "KRW-XRP" || data["timeframe"] != "15m" {
		t.Errorf("unexpected summary %v", data)
	}

	if w := getTrend(handler, "KRW-XRP", "?live=true"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without timeframe, got %d", w.Code)
	}

	computer.err = core.WrapError(core.ErrInsufficientHistory, errors.New("5 samples"))
	if w := getTrend(handler, "KRW-XRP", "?timeframe=15m&live=true"); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}
