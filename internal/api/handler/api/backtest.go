package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/aitrader/internal/api/job"
	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/backtest"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/strategy"
)

const (
	backtestTimeout      = 5 * time.Minute
	defaultBacktestCount = 200
	maxBacktestCount     = 2000
)

// BacktestRunner replays a strategy over fetched history.
type BacktestRunner interface {
	Run(ctx context.Context, strat strategy.Strategy, instrument string, tf core.Timeframe, count int) (*backtest.Result, error)
}

// StrategyFactory builds a fresh strategy instance so a replay never shares
// state with the live one.
type StrategyFactory func(name string, params map[string]any) (strategy.Strategy, error)

// BacktestObserver counts backtests by outcome.
type BacktestObserver interface {
	RecordBacktest(status string)
}

// BacktestRequest is the request body for starting a backtest.
type BacktestRequest struct {
	Instrument string         `json:"instrument"`
	Timeframe  string         `json:"timeframe"`
	Strategy   string         `json:"strategy"`
	Count      int            `json:"count,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore   *job.Store
	backtester BacktestRunner
	strategies StrategyFactory
	observer   BacktestObserver
	quote      string
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(
	jobStore *job.Store,
	backtester BacktestRunner,
	strategies StrategyFactory,
	observer BacktestObserver,
	quote string,
) *BacktestHandler {
	return &BacktestHandler{
		jobStore:   jobStore,
		backtester: backtester,
		strategies: strategies,
		observer:   observer,
		quote:      quote,
	}
}

// Create handles POST /api/v1/backtest and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	if req.Instrument == "" || req.Strategy == "" || req.Timeframe == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, errMissing("instrument, timeframe and strategy")))
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

	count := req.Count
	if count == 0 {
		count = defaultBacktestCount
	}
	if count < 0 || count > maxBacktestCount {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, errors.New("count out of range")))
		return
	}

	strat, err := h.strategies(req.Strategy, req.Params)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobStore.Create("backtest", map[string]any{
		"instrument": instrument,
		"timeframe":  tf,
		"strategy":   req.Strategy,
		"count":      count,
	})

	go h.runBacktest(j.ID, strat, instrument, tf, count)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runBacktest executes the backtest and records the outcome on the job.
func (h *BacktestHandler) runBacktest(
	jobID string,
	strat strategy.Strategy,
	instrument string,
	tf core.Timeframe,
	count int,
) {
	if err := h.jobStore.Start(jobID); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	result, err := h.backtester.Run(ctx, strat, instrument, tf, count)

	if err != nil {
		h.record("failed")
		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(core.ErrStrategyFailed, err)
		}
		h.jobStore.Fail(jobID, coreErr)
		return
	}

	h.record("complete")
	h.jobStore.Finish(jobID, result)
}

func (h *BacktestHandler) record(status string) {
	if h.observer != nil {
		h.observer.RecordBacktest(status)
	}
}

// GetStatus handles GET /api/v1/backtest/{id}.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":  j.ID,
		"status":  j.Status,
		"params":  j.Params,
		"elapsed": j.Elapsed(time.Now()).String(),
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}
