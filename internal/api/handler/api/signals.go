package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/storage/signal"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 1000
)

// SignalsHandler serves routed recommendations from the signal store.
type SignalsHandler struct {
	store signal.Store
}

func NewSignalsHandler(store signal.Store) *SignalsHandler {
	return &SignalsHandler{store: store}
}

// List handles GET /api/v1/signals, newest first. Malformed filters are
// rejected with 400 rather than ignored.
func (h *SignalsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := signalFilter(r.URL.Query())
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	signals, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetByID handles GET /api/v1/signals/{id}.
func (h *SignalsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	sig, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sig)
}

func signalFilter(q url.Values) (signal.ListFilter, error) {
	f := signal.ListFilter{
		Symbol:   q.Get("symbol"),
		Strategy: q.Get("strategy"),
	}

	var err error
	if raw := q.Get("action"); raw != "" {
		if f.Action, err = core.ParseAction(raw); err != nil {
			return f, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	if raw := q.Get("timeframe"); raw != "" {
		if f.Timeframe, err = core.ParseTimeframe(raw); err != nil {
			return f, err
		}
	}
	if f.From, err = parseTime("from", q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = parseTime("to", q.Get("to")); err != nil {
		return f, err
	}
	if f.Limit, err = parseCount(q.Get("limit"), defaultSignalLimit, maxSignalLimit); err != nil {
		return f, err
	}
	if raw := q.Get("offset"); raw != "" {
		f.Offset, err = strconv.Atoi(raw)
		if err != nil || f.Offset < 0 {
			return f, core.Errorf(core.ErrConfigInvalid, "offset must be a non-negative integer, got %q", raw)
		}
	}
	return f, nil
}

// parseTime accepts RFC 3339 or a bare UTC date. Empty means unbounded.
func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, core.Errorf(core.ErrConfigInvalid, "%s: want RFC 3339 or YYYY-MM-DD, got %q", field, raw)
}
