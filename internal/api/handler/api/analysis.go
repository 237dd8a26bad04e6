package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
)

// AnalysisApp defines the interface needed from app.App.
type AnalysisApp interface {
	Analyze(ctx context.Context, instrument string, tf core.Timeframe, strategies []string) ([]core.Signal, error)
	RunSignals(ctx context.Context)
}

// AnalysisHandler runs strategies on request.
type AnalysisHandler struct {
	app     AnalysisApp
	quote   string
	timeout time.Duration
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(app AnalysisApp, quote string) *AnalysisHandler {
	return &AnalysisHandler{app: app, quote: quote, timeout: 5 * time.Minute}
}

// AnalyzeRequest is the request body of an ad hoc analysis.
type AnalyzeRequest struct {
	Instrument string   `json:"instrument"`
	Timeframe  string   `json:"timeframe"`
	Strategies []string `json:"strategies,omitempty"`
}

// Analyze handles POST /api/v1/analyze. The returned signals have also
// been routed to the notifiers.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if req.Instrument == "" || req.Timeframe == "" {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigMissing, errMissing("instrument and timeframe")))
		return
	}

	instrument, err := parseMarket(req.Instrument, h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	tf, err := core.ParseTimeframe(req.Timeframe)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	signals, err := h.app.Analyze(r.Context(), instrument, tf, req.Strategies)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if signals == nil {
		signals = []core.Signal{}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"instrument": instrument,
		"timeframe":  tf,
		"signals":    signals,
	})
}

// Trigger handles POST /api/v1/analyze/run and runs one watchlist cycle in
// the background.
func (h *AnalysisHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		h.app.RunSignals(ctx)
	}()

	response.JSON(w, http.StatusAccepted, map[string]any{
		"triggered": true,
	})
}
