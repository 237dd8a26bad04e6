package api

import (
	"net/http"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/ledger"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 500
)

// LedgerHandler exposes the paper account.
type LedgerHandler struct {
	ledger  ledger.Ledger
	account string
}

// NewLedgerHandler creates a handler for one ledger account.
func NewLedgerHandler(l ledger.Ledger, account string) *LedgerHandler {
	return &LedgerHandler{ledger: l, account: account}
}

// Get handles GET /api/v1/ledger: balances folded from the entries plus
// the newest entries.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit, err := parseCount(r.URL.Query().Get("limit"), defaultEntryLimit, maxEntryLimit)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	balances, err := h.ledger.Balances(r.Context(), h.account)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	entries, err := h.ledger.Entries(r.Context(), h.account, limit)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"account":  h.account,
		"balances": balances,
		"entries":  entries,
	})
}
