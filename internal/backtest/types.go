package backtest

import (
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// Result is one replay of a strategy over a fetched window.
type Result struct {
	Strategy   string         `json:"strategy" yaml:"strategy"`
	Instrument string         `json:"instrument" yaml:"instrument"`
	Timeframe  core.Timeframe `json:"timeframe" yaml:"timeframe"`
	From       time.Time      `json:"from" yaml:"from"`
	To         time.Time      `json:"to" yaml:"to"`
	Samples    int            `json:"samples" yaml:"samples"`
	Signals    []core.Signal  `json:"signals" yaml:"-"`
	Trades     []Trade        `json:"trades" yaml:"trades"`
	Stats      Stats          `json:"stats" yaml:"stats"`
}

// Trade is a round trip from a BUY taken while flat to the next SELL. A
// trade still open at the end of the window is marked to the last sample.
type Trade struct {
	Entry      core.Signal  `json:"entry" yaml:"-"`
	Exit       *core.Signal `json:"exit,omitempty" yaml:"-"`
	EntryPrice float64      `json:"entry_price" yaml:"entry_price"`
	ExitPrice  float64      `json:"exit_price" yaml:"exit_price"`
	EntryAt    time.Time    `json:"entry_at" yaml:"entry_at"`
	ExitAt     time.Time    `json:"exit_at" yaml:"exit_at"`
	Return     float64      `json:"return" yaml:"return"` // fraction, 0.05 is 5%
}

// Open reports whether the trade was never closed by a SELL.
func (t Trade) Open() bool { return t.Exit == nil }

// Held is the time between entry and exit or the mark.
func (t Trade) Held() time.Duration { return t.ExitAt.Sub(t.EntryAt) }

// Stats summarizes closed trades. Return figures are percentages; an open
// trade only contributes OpenReturn.
type Stats struct {
	TotalTrades   int     `json:"total_trades" yaml:"total_trades"`
	WinningTrades int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades  int     `json:"losing_trades" yaml:"losing_trades"`
	WinRate       float64 `json:"win_rate" yaml:"win_rate"`
	TotalReturn   float64 `json:"total_return" yaml:"total_return"` // compounded
	AvgReturn     float64 `json:"avg_return" yaml:"avg_return"`
	BestTrade     float64 `json:"best_trade" yaml:"best_trade"`
	WorstTrade    float64 `json:"worst_trade" yaml:"worst_trade"`
	MaxDrawdown   float64 `json:"max_drawdown" yaml:"max_drawdown"`
	// ProfitFactor is gross gain over gross loss, 0 without losses.
	ProfitFactor float64 `json:"profit_factor" yaml:"profit_factor"`
	// SharpeRatio is per trade and not annualized.
	SharpeRatio float64       `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	AvgHold     time.Duration `json:"avg_hold" yaml:"avg_hold"`
	OpenReturn  *float64      `json:"open_return,omitempty" yaml:"open_return,omitempty"`
}
