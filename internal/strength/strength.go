// Package strength measures buying pressure from recent trade ticks.
package strength

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// DefaultWindows are the tick counts reported by Measure.
var DefaultWindows = []int{10, 50, 100}

// TradeSource returns recent trades, newest first.
type TradeSource interface {
	Trades(ctx context.Context, market string, count int) ([]core.Trade, error)
}

// Window is the trade strength over the newest N ticks.
type Window struct {
	Ticks int `json:"ticks"`
	// BuyRatio is the bid volume share in percent, 0 when nothing traded.
	BuyRatio  float64       `json:"buy_ratio"`
	BuyVolume float64       `json:"buy_volume"`
	Volume    float64       `json:"volume"`
	Span      time.Duration `json:"span"`
	From      *time.Time    `json:"from,omitempty"`
	To        *time.Time    `json:"to,omitempty"`
}

// Report is the strength of one market over several windows.
type Report struct {
	Market  string    `json:"market"`
	Windows []Window  `json:"windows"`
	At      time.Time `json:"at"`
}

// Compute summarises the newest n trades of a newest-first list. Fewer than
// two trades have no time span.
func Compute(trades []core.Trade, n int) Window {
	if n > len(trades) {
		n = len(trades)
	}
	subset := trades[:n]
	w := Window{Ticks: n}

	for _, t := range subset {
		switch t.Side {
		case core.SideBid:
			w.BuyVolume += t.Volume
			w.Volume += t.Volume
		case core.SideAsk:
			w.Volume += t.Volume
		}
	}
	if w.Volume > 0 {
		w.BuyRatio = w.BuyVolume / w.Volume * 100
	}

	if len(subset) >= 2 {
		from, to := subset[len(subset)-1].Time, subset[0].Time
		w.Span = to.Sub(from)
		if w.Span < 0 {
			w.Span = -w.Span
		}
		w.From, w.To = &from, &to
	}
	return w
}

// Analyzer fetches trades once and reports every window.
type Analyzer struct {
	source  TradeSource
	windows []int
	now     func() time.Time
}

// NewAnalyzer creates an analyzer over windows, or DefaultWindows when none
// are given.
func NewAnalyzer(source TradeSource, windows ...int) *Analyzer {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	return &Analyzer{source: source, windows: windows, now: time.Now}
}

// Measure reports trade strength for market.
func (a *Analyzer) Measure(ctx context.Context, market string) (*Report, error) {
	largest := 0
	for _, n := range a.windows {
		if n <= 0 {
			return nil, fmt.Errorf("strength: window must be positive, got %d", n)
		}
		if n > largest {
			largest = n
		}
	}

	trades, err := a.source.Trades(ctx, market, largest)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}
	if len(trades) == 0 {
		return nil, core.Errorf(core.ErrDataUnavailable, "no trades for %s", market)
	}

	report := &Report{Market: market, At: a.now().UTC()}
	for _, n := range a.windows {
		report.Windows = append(report.Windows, Compute(trades, n))
	}
	return report, nil
}
