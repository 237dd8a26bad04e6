package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/backtest"
	"github.com/newthinker/aitrader/internal/config"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/metrics"
	"github.com/newthinker/aitrader/internal/storage/signal"
	"github.com/newthinker/aitrader/internal/strategy"
	"github.com/newthinker/aitrader/internal/trend"
)

type stubApp struct {
	watchlist []config.WatchlistItem
}

func (a *stubApp) Analyze(ctx context.Context, instrument string, tf core.Timeframe, strategies []string) ([]core.Signal, error) {
	return nil, nil
}
func (a *stubApp) RunSignals(ctx context.Context) {}
func (a *stubApp) Watchlist() []config.WatchlistItem {
	return a.watchlist
}
func (a *stubApp) AddToWatchlist(item config.WatchlistItem) {
	a.watchlist = append(a.watchlist, item)
}
func (a *stubApp) RemoveFromWatchlist(symbol string) bool { return false }
func (a *stubApp) Trend(ctx context.Context, instrument string, tf core.Timeframe) (trend.Summary, error) {
	return trend.Summary{Instrument: instrument, Timeframe: tf, Label: trend.LabelNone}, nil
}

type noRunner struct{}

func (noRunner) Run(ctx context.Context, strat strategy.Strategy, instrument string, tf core.Timeframe, count int) (*backtest.Result, error) {
	return &backtest.Result{}, nil
}

func testDeps() Dependencies {
	return Dependencies{
		App:     &stubApp{watchlist: []config.WatchlistItem{{Symbol: "KRW-BTC"}}},
		Board:   trend.NewBoard(),
		Signals: signal.NewMemoryStore(100),
		Quote:   "KRW",
	}
}

func newTestServer(t *testing.T, cfg Config, deps Dependencies) *Server {
	t.Helper()
	srv, err := NewServer(cfg, deps, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func serve(srv *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	deps := testDeps()
	deps.Board.Publish(&trend.Snapshot{Cycle: 7, GeneratedAt: time.Now()})
	srv := newTestServer(t, Config{Host: "localhost"}, deps)

	w := serve(srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp.Data.(map[string]any)
	if data["trend_cycle"] != float64(7) {
		t.Errorf("expected cycle 7, got %v", data["trend_cycle"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request ID header")
	}
}

func TestServer_RequiresCoreDependencies(t *testing.T) {
	deps := testDeps()
	deps.Board = nil
	if _, err := NewServer(Config{}, deps, nil); err == nil {
		t.Error("expected error without a board")
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv := newTestServer(t, Config{APIKey: "test-key"}, testDeps())

	if w := serve(srv, "GET", "/api/v1/signals", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}
	if w := serve(srv, "GET", "/api/health", nil); w.Code != http.StatusOK {
		t.Errorf("health must not require a key, got %d", w.Code)
	}
}

func TestServer_APIAuth_ValidKey(t *testing.T) {
	srv := newTestServer(t, Config{APIKey: "test-key"}, testDeps())

	w := serve(srv, "GET", "/api/v1/signals", map[string]string{"X-API-Key": "test-key"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	srv := newTestServer(t, Config{}, testDeps())

	if w := serve(srv, "GET", "/api/v1/trends", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 with disabled auth, got %d", w.Code)
	}
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, Config{}, testDeps())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/v1/watchlist", http.StatusOK},
		{"GET", "/api/v1/trends/KRW-BTC?timeframe=1h&live=true", http.StatusOK},
		{"GET", "/api/v1/trends/KRW-BTC", http.StatusNotFound},
		{"GET", "/api/v1/signals/unknown", http.StatusNotFound},
		{"POST", "/api/v1/trends", http.StatusMethodNotAllowed},
		// Optional routes are absent without their dependencies.
		{"GET", "/api/v1/ledger", http.StatusNotFound},
		{"POST", "/api/v1/backtest", http.StatusNotFound},
		{"GET", "/metrics", http.StatusNotFound},
		{"GET", "/api/v1/alerts", http.StatusNotFound},
		{"GET", "/api/v1/archive/2025-01-01", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := serve(srv, tt.method, tt.path, nil); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestServer_WithBacktester(t *testing.T) {
	deps := testDeps()
	deps.Backtester = noRunner{}
	deps.Strategies = func(name string, params map[string]any) (strategy.Strategy, error) {
		return nil, core.WrapError(core.ErrNotFound, nil)
	}
	srv := newTestServer(t, Config{}, deps)

	req := httptest.NewRequest("POST", "/api/v1/backtest",
		strings.NewReader(`{"instrument":"KRW-BTC","timeframe":"1h","strategy":"nope"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown strategy, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	deps := testDeps()
	deps.Metrics = metrics.NewRegistry()
	srv := newTestServer(t, Config{}, deps)

	serve(srv, "GET", "/api/v1/trends/KRW-ETH", nil)

	w := serve(srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `path="/api/v1/trends/{instrument}"`) {
		t.Errorf("expected request metric by route pattern, got:\n%s", w.Body.String())
	}
}
