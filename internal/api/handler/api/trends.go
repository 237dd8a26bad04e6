package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/trend"
)

// TrendComputer computes one pair on demand.
type TrendComputer interface {
	Trend(ctx context.Context, instrument string, tf core.Timeframe) (trend.Summary, error)
}

// TrendsHandler serves the published trend snapshot.
type TrendsHandler struct {
	board    *trend.Board
	computer TrendComputer
	quote    string
}

// NewTrendsHandler creates a new trends handler. Bare instrument codes in
// paths are completed with quote.
func NewTrendsHandler(board *trend.Board, computer TrendComputer, quote string) *TrendsHandler {
	return &TrendsHandler{board: board, computer: computer, quote: quote}
}

// List handles GET /api/v1/trends. An optional label query keeps only the
// summaries with that presentation label.
func (h *TrendsHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Current()

	label := trend.Label(r.URL.Query().Get("label"))
	if label == "" {
		response.JSON(w, http.StatusOK, snap)
		return
	}

	filtered := make(map[string]map[core.Timeframe]trend.Summary)
	for instrument, byTF := range snap.Trends {
		for tf, sum := range byTF {
			if sum.Label != label {
				continue
			}
			if filtered[instrument] == nil {
				filtered[instrument] = make(map[core.Timeframe]trend.Summary)
			}
			filtered[instrument][tf] = sum
		}
	}
	response.JSON(w, http.StatusOK, &trend.Snapshot{
		Cycle:       snap.Cycle,
		GeneratedAt: snap.GeneratedAt,
		Trends:      filtered,
		Failures:    snap.Failures,
	})
}

// Get handles GET /api/v1/trends/{instrument}. With a timeframe query it
// returns one summary; live=true computes that summary now instead of
// reading the snapshot.
func (h *TrendsHandler) Get(w http.ResponseWriter, r *http.Request) {
	instrument, err := parseMarket(r.PathValue("instrument"), h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	tfParam := q.Get("timeframe")
	live, _ := strconv.ParseBool(q.Get("live"))

	if tfParam == "" {
		if live {
			response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigMissing, errMissing("timeframe")))
			return
		}
		byTF, ok := h.board.Current().Instrument(instrument)
		if !ok {
			response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, errors.New(instrument)))
			return
		}
		response.JSON(w, http.StatusOK, map[string]any{
			"instrument": instrument,
			"trends":     byTF,
		})
		return
	}

	tf, err := core.ParseTimeframe(tfParam)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	if live {
		sum, err := h.computer.Trend(r.Context(), instrument, tf)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.JSON(w, http.StatusOK, sum)
		return
	}

	sum, ok := h.board.Current().Get(instrument, tf)
	if !ok {
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, errors.New(instrument+"/"+string(tf))))
		return
	}
	response.JSON(w, http.StatusOK, sum)
}
