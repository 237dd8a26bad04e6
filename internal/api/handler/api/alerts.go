package api

import (
	"net/http"

	"github.com/newthinker/aitrader/internal/alert"
	"github.com/newthinker/aitrader/internal/api/response"
)

// AlertFeed is the read side of the alert evaluator.
type AlertFeed interface {
	Recent() []alert.Alert
}

// AlertsHandler lists fired trend alerts.
type AlertsHandler struct {
	feed AlertFeed
}

// NewAlertsHandler creates a new alerts handler
func NewAlertsHandler(feed AlertFeed) *AlertsHandler {
	return &AlertsHandler{feed: feed}
}

// List handles GET /api/v1/alerts, newest first.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseCount(r.URL.Query().Get("limit"), defaultEntryLimit, maxEntryLimit)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	recent := h.feed.Recent()
	out := make([]alert.Alert, 0, min(limit, len(recent)))
	for i := len(recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, recent[i])
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"alerts": out,
		"count":  len(out),
	})
}
