// Package signal stores recently generated recommendations for the API.
// Signals do not survive a restart.
package signal

import (
	"context"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// Store keeps recently generated signals.
type Store interface {
	// Save stores sig, assigning an ID when it has none.
	Save(ctx context.Context, sig core.Signal) (core.Signal, error)
	GetByID(ctx context.Context, id string) (*core.Signal, error)
	// List returns matching signals, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.Signal, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter selects signals. Zero fields match everything; From and To are
// inclusive bounds on GeneratedAt.
type ListFilter struct {
	Symbol    string
	Timeframe core.Timeframe
	Strategy  string
	Action    core.Action
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// Match reports whether sig passes the filter, ignoring paging.
func (f ListFilter) Match(sig core.Signal) bool {
	switch {
	case f.Symbol != "" && sig.Symbol != f.Symbol,
		f.Timeframe != "" && sig.Timeframe != f.Timeframe,
		f.Strategy != "" && sig.Strategy != f.Strategy,
		f.Action != "" && sig.Action != f.Action,
		!f.From.IsZero() && sig.GeneratedAt.Before(f.From),
		!f.To.IsZero() && sig.GeneratedAt.After(f.To):
		return false
	}
	return true
}
