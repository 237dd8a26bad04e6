package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/indicator"
	"github.com/newthinker/aitrader/internal/pricewatch"
	"github.com/newthinker/aitrader/internal/series"
	"github.com/newthinker/aitrader/internal/strength"
)

const (
	defaultIndicatorCount = 200
	maxIndicatorCount     = 1000
)

// SeriesFetcher supplies fresh series for indicator queries.
type SeriesFetcher interface {
	Fetch(ctx context.Context, instrument string, tf core.Timeframe, count int) (*series.Series, error)
}

// StrengthMeter measures trade strength of a market.
type StrengthMeter interface {
	Measure(ctx context.Context, market string) (*strength.Report, error)
}

// MarketHandler serves live market views: tracked prices, trade strength
// and indicator values.
type MarketHandler struct {
	prices   *pricewatch.Tracker
	strength StrengthMeter
	fetcher  SeriesFetcher
	quote    string
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(prices *pricewatch.Tracker, meter StrengthMeter, fetcher SeriesFetcher, quote string) *MarketHandler {
	return &MarketHandler{prices: prices, strength: meter, fetcher: fetcher, quote: quote}
}

type priceView struct {
	Market  string             `json:"market"`
	Price   float64            `json:"price"`
	Change  *float64           `json:"change_pct"`
	History []pricewatch.Point `json:"history,omitempty"`
}

func (h *MarketHandler) view(market string, withHistory bool) (priceView, bool) {
	latest, ok := h.prices.Latest(market)
	if !ok {
		return priceView{}, false
	}
	v := priceView{Market: market, Price: latest.Price}
	if c, ok := h.prices.Change(market); ok {
		v.Change = &c
	}
	if withHistory {
		v.History = h.prices.History(market)
	}
	return v, true
}

// Prices handles GET /api/v1/prices.
func (h *MarketHandler) Prices(w http.ResponseWriter, r *http.Request) {
	markets := h.prices.Markets()
	out := make([]priceView, 0, len(markets))
	for _, m := range markets {
		if v, ok := h.view(m, false); ok {
			out = append(out, v)
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"prices": out,
		"count":  len(out),
	})
}

// Price handles GET /api/v1/prices/{market}.
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	market, err := parseMarket(r.PathValue("market"), h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	v, ok := h.view(market, true)
	if !ok {
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, errors.New(market)))
		return
	}
	response.JSON(w, http.StatusOK, v)
}

// Strength handles GET /api/v1/strength/{market}.
func (h *MarketHandler) Strength(w http.ResponseWriter, r *http.Request) {
	market, err := parseMarket(r.PathValue("market"), h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	report, err := h.strength.Measure(r.Context(), market)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

// Indicators handles GET /api/v1/markets/{market}/indicators and returns
// the newest value of every indicator. Undefined values are null.
func (h *MarketHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	market, err := parseMarket(r.PathValue("market"), h.quote)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	tf := core.Timeframe1h
	if raw := q.Get("timeframe"); raw != "" {
		if tf, err = core.ParseTimeframe(raw); err != nil {
			response.Error(w, http.StatusBadRequest, err)
			return
		}
	}
	count, err := parseCount(q.Get("count"), defaultIndicatorCount, maxIndicatorCount)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}
	short, _ := strconv.Atoi(q.Get("short"))
	if short <= 0 {
		short = 3
	}
	long, _ := strconv.Atoi(q.Get("long"))
	if long <= short {
		long = 20
	}

	s, err := h.fetcher.Fetch(r.Context(), market, tf, count)
	if err != nil {
		response.Fail(w, err)
		return
	}

	shortVWMA := indicator.VWMA(s, short)
	longVWMA := indicator.VWMA(s, long)
	stoch := indicator.StochRSI(s, 14, 3, 3)
	last, _ := s.Last()

	response.JSON(w, http.StatusOK, map[string]any{
		"market":    market,
		"timeframe": tf,
		"samples":   s.Len(),
		"price":     last.Price,
		"time":      last.Time,
		"indicators": map[string]any{
			"sma_short":   lastValue(indicator.SMA(s, short)),
			"sma_long":    lastValue(indicator.SMA(s, long)),
			"wma_short":   lastValue(indicator.WMA(s, short)),
			"wma_long":    lastValue(indicator.WMA(s, long)),
			"vwma_short":  lastValue(shortVWMA),
			"vwma_long":   lastValue(longVWMA),
			"diff_rate":   lastValue(indicator.DiffRate(shortVWMA, longVWMA)),
			"rsi":         lastValue(indicator.RSI(s, 14)),
			"stoch_rsi_k": lastValue(stoch.K),
			"stoch_rsi_d": lastValue(stoch.D),
			"roc":         lastValue(indicator.ROC(s, 10)),
			"pct_change":  lastValue(indicator.PctChange(indicator.FromSeries(s))),
		},
		"up_down": indicator.AverageUpDown(indicator.FromSeries(s)),
	})
}

func lastValue(l indicator.Line) *float64 {
	v, ok := l.Last()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
