// Package api serves the trend snapshot, signals and market views over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/newthinker/aitrader/internal/api/handler/api"
	"github.com/newthinker/aitrader/internal/api/job"
	"github.com/newthinker/aitrader/internal/api/middleware"
	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/ledger"
	"github.com/newthinker/aitrader/internal/metrics"
	"github.com/newthinker/aitrader/internal/pricewatch"
	"github.com/newthinker/aitrader/internal/storage/signal"
	"github.com/newthinker/aitrader/internal/trend"
)

const jobCleanupInterval = 10 * time.Minute

// Application is what the handlers need from app.App.
type Application interface {
	handler.AnalysisApp
	handler.WatchlistApp
	handler.TrendComputer
}

// Dependencies holds everything the routes read from. Optional parts left
// nil drop their routes.
type Dependencies struct {
	App     Application
	Board   *trend.Board
	Signals signal.Store

	Ledger  ledger.Ledger
	Account string

	Prices   *pricewatch.Tracker
	Strength handler.StrengthMeter
	Series   handler.SeriesFetcher

	Backtester handler.BacktestRunner
	Strategies handler.StrategyFactory

	Alerts  handler.AlertFeed
	Archive handler.SnapshotArchive

	Metrics *metrics.Registry
	Quote   string
}

// Server represents the HTTP server for aitrader
type Server struct {
	httpServer  *http.Server
	logger      *zap.Logger
	mux         *http.ServeMux
	jobs        *job.Store
	apiKey      string
	metricsPath string
	done        chan struct{}
}

// Config holds server configuration
type Config struct {
	Host   string
	Port   int
	APIKey string
	// MetricsPath serves the Prometheus registry, "/metrics" when empty.
	MetricsPath string
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.App == nil || deps.Board == nil || deps.Signals == nil {
		return nil, fmt.Errorf("api: app, board and signal store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	var h http.Handler = mux
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}
	h = metrics.LoggingMiddleware(logger)(h)

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:      logger,
		mux:         mux,
		jobs:        job.NewStore(100, time.Hour),
		apiKey:      cfg.APIKey,
		metricsPath: cfg.MetricsPath,
		done:        make(chan struct{}),
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	s.setupRoutes(deps)
	return s, nil
}

// Handler returns the server's root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handle registers an authenticated /api/v1 route.
func (s *Server) handle(pattern string, fn http.HandlerFunc) {
	s.mux.Handle(pattern, middleware.APIKeyAuth(s.apiKey)(fn))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Dependencies) {
	s.mux.HandleFunc("GET /api/health", s.healthHandler(deps.Board))
	if deps.Metrics != nil {
		s.mux.Handle("GET "+s.metricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	trends := handler.NewTrendsHandler(deps.Board, deps.App, deps.Quote)
	s.handle("GET /api/v1/trends", trends.List)
	s.handle("GET /api/v1/trends/{instrument}", trends.Get)

	signals := handler.NewSignalsHandler(deps.Signals)
	s.handle("GET /api/v1/signals", signals.List)
	s.handle("GET /api/v1/signals/{id}", signals.GetByID)

	analysis := handler.NewAnalysisHandler(deps.App, deps.Quote)
	s.handle("POST /api/v1/analyze", analysis.Analyze)
	s.handle("POST /api/v1/analyze/run", analysis.Trigger)

	watchlist := handler.NewWatchlistHandler(deps.App, deps.Quote)
	s.handle("GET /api/v1/watchlist", watchlist.List)
	s.handle("POST /api/v1/watchlist", watchlist.Add)
	s.handle("DELETE /api/v1/watchlist/{symbol}", watchlist.Remove)

	if deps.Backtester != nil && deps.Strategies != nil {
		var observer handler.BacktestObserver
		if deps.Metrics != nil {
			observer = deps.Metrics
		}
		backtest := handler.NewBacktestHandler(s.jobs, deps.Backtester, deps.Strategies, observer, deps.Quote)
		s.handle("POST /api/v1/backtest", backtest.Create)
		s.handle("GET /api/v1/backtest/{id}", backtest.GetStatus)
	}

	if deps.Ledger != nil {
		ledgerHandler := handler.NewLedgerHandler(deps.Ledger, deps.Account)
		s.handle("GET /api/v1/ledger", ledgerHandler.Get)
	}

	if deps.Alerts != nil {
		alerts := handler.NewAlertsHandler(deps.Alerts)
		s.handle("GET /api/v1/alerts", alerts.List)
	}

	if deps.Archive != nil {
		archive := handler.NewArchiveHandler(deps.Archive)
		s.handle("GET /api/v1/archive/{date}", archive.Day)
		s.handle("GET /api/v1/archive/{date}/{time}", archive.Get)
	}

	if deps.Prices != nil && deps.Strength != nil && deps.Series != nil {
		market := handler.NewMarketHandler(deps.Prices, deps.Strength, deps.Series, deps.Quote)
		s.handle("GET /api/v1/prices", market.Prices)
		s.handle("GET /api/v1/prices/{market}", market.Price)
		s.handle("GET /api/v1/strength/{market}", market.Strength)
		s.handle("GET /api/v1/markets/{market}/indicators", market.Indicators)
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	go s.cleanupJobs()

	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) cleanupJobs() {
	ticker := time.NewTicker(jobCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.jobs.Cleanup(); n > 0 {
				s.logger.Debug("removed finished jobs", zap.Int("count", n))
			}
		}
	}
}

func (s *Server) healthHandler(board *trend.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := board.Current()
		body := map[string]any{
			"status":      "ok",
			"trend_cycle": snap.Cycle,
		}
		if !snap.GeneratedAt.IsZero() {
			body["trend_generated_at"] = snap.GeneratedAt
		}
		response.JSON(w, http.StatusOK, body)
	}
}
