package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/config"
	"github.com/newthinker/aitrader/internal/core"
)

// WatchlistApp defines the interface needed from app.App.
type WatchlistApp interface {
	Watchlist() []config.WatchlistItem
	AddToWatchlist(item config.WatchlistItem)
	RemoveFromWatchlist(symbol string) bool
}

// WatchlistHandler handles watchlist API requests.
type WatchlistHandler struct {
	app   WatchlistApp
	quote string
}

// NewWatchlistHandler creates a new watchlist handler.
func NewWatchlistHandler(app WatchlistApp, quote string) *WatchlistHandler {
	return &WatchlistHandler{app: app, quote: quote}
}

// AddRequest is the request body for adding a symbol.
type AddRequest struct {
	Symbol     string   `json:"symbol"`
	Timeframes []string `json:"timeframes,omitempty"`
	Strategies []string `json:"strategies,omitempty"`
}

type watchlistItem struct {
	Symbol     string           `json:"symbol"`
	Timeframes []core.Timeframe `json:"timeframes,omitempty"`
	Strategies []string         `json:"strategies,omitempty"`
}

// List handles GET /api/v1/watchlist.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.app.Watchlist()
	out := make([]watchlistItem, len(items))
	for i, it := range items {
		out[i] = watchlistItem(it)
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"items": out,
		"count": len(out),
	})
}

// Add handles POST /api/v1/watchlist. Adding an existing symbol replaces it.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	if req.Symbol == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, errMissing("symbol")))
		return
	}

	market, err := parseMarket(req.Symbol, h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	item := config.WatchlistItem{Symbol: market, Strategies: req.Strategies}
	for _, raw := range req.Timeframes {
		tf, err := core.ParseTimeframe(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, err)
			return
		}
		item.Timeframes = append(item.Timeframes, tf)
	}

	h.app.AddToWatchlist(item)

	response.JSON(w, http.StatusCreated, map[string]any{
		"symbol": market,
		"added":  true,
	})
}

// Remove handles DELETE /api/v1/watchlist/{symbol}.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	market, err := parseMarket(r.PathValue("symbol"), h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	if !h.app.RemoveFromWatchlist(market) {
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, errors.New(market)))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":  market,
		"removed": true,
	})
}
