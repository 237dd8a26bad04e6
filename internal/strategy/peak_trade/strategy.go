// Package peak_trade trades VWMA turning points confirmed by the short-term
// price direction.
package peak_trade

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/detector"
	"github.com/newthinker/aitrader/internal/indicator"
	"github.com/newthinker/aitrader/internal/strategy"
)

// PeakTrade buys a VWMA trough on the last closed sample when prices are
// turning up, and sells a VWMA peak when they are turning down. Each
// extremum is acted on at most once.
type PeakTrade struct {
	window      int
	minDistance int
	notional    decimal.Decimal

	mu     sync.Mutex
	traded map[string]struct{}
}

// New creates a peak trade strategy over a VWMA of the given window.
func New(window int) *PeakTrade {
	return &PeakTrade{
		window:      window,
		minDistance: detector.DefaultMinDistance,
		notional:    decimal.NewFromInt(500_000),
		traded:      make(map[string]struct{}),
	}
}

func (p *PeakTrade) Name() string {
	return "peak_trade"
}

func (p *PeakTrade) Description() string {
	return fmt.Sprintf("VWMA%d peak/trough trader", p.window)
}

func (p *PeakTrade) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		History: p.window * 10,
	}
}

func (p *PeakTrade) Init(cfg strategy.Config) error {
	var err error
	if p.window, err = strategy.IntParam(cfg.Params, "window", p.window); err != nil {
		return err
	}
	if p.minDistance, err = strategy.IntParam(cfg.Params, "min_distance", p.minDistance); err != nil {
		return err
	}
	if p.notional, err = strategy.DecimalParam(cfg.Params, "notional", p.notional); err != nil {
		return err
	}
	if p.window <= 0 {
		return fmt.Errorf("window must be positive, got %d", p.window)
	}
	return nil
}

func (p *PeakTrade) Analyze(ctx strategy.AnalysisContext) ([]core.Signal, error) {
	s := ctx.Series
	n := s.Len()
	if n < p.window+2 {
		return nil, nil // Not enough data
	}

	vwma := indicator.VWMA(s, p.window)
	extrema := detector.Extrema(vwma, p.minDistance)
	if len(extrema) == 0 {
		return nil, nil
	}

	// The newest sample is still open, so the candidate is the one before it.
	ext := extrema[len(extrema)-1]
	if ext.Index != n-2 {
		return nil, nil
	}

	key := fmt.Sprintf("%s/%s/%d", s.Instrument, s.Timeframe, ext.Time.Unix())
	p.mu.Lock()
	_, done := p.traded[key]
	p.mu.Unlock()
	if done {
		return nil, nil
	}

	trend := detector.ShortTrend(s.Prices())
	closed := s.Samples[n-2]
	holding := ctx.Holding
	held := holding != nil && holding.IsPositive()

	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	sig := core.Signal{
		Symbol:      s.Instrument,
		Timeframe:   s.Timeframe,
		Price:       closed.Price,
		GeneratedAt: now,
		Metadata: map[string]any{
			"extremum":    string(ext.Kind),
			"extremum_at": ext.Time,
			"vwma":        ext.Value,
			"trend":       string(trend),
		},
	}

	switch {
	case ext.Kind == core.ExtremumTrough && trend == detector.DirectionUp && !held:
		sig.Action = core.ActionBuy
		sig.Reason = fmt.Sprintf("VWMA%d trough with prices turning up", p.window)
		size := p.notional.Div(decimal.NewFromFloat(closed.Price)).Round(8)
		sig.Size = &size
	case ext.Kind == core.ExtremumPeak && trend == detector.DirectionDown && (holding == nil || held):
		sig.Action = core.ActionSell
		sig.Reason = fmt.Sprintf("VWMA%d peak with prices turning down", p.window)
		sig.FullPosition = true
		if holding != nil {
			h := *holding
			sig.Size = &h
		}
	default:
		return nil, nil
	}

	p.mu.Lock()
	p.traded[key] = struct{}{}
	p.mu.Unlock()

	return []core.Signal{sig}, nil
}
