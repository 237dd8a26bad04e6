// Package wma_alignment compares several short WMAs against one long WMA.
package wma_alignment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/indicator"
	"github.com/newthinker/aitrader/internal/strategy"
)

// WMAAlignment buys when every short WMA sits above the long WMA and sells
// when every one sits below it.
type WMAAlignment struct {
	shortPeriods []int
	longPeriod   int
	notional     decimal.Decimal
}

// New creates the strategy. With no short periods it uses 3, 15, 30 and 60.
func New(longPeriod int, shortPeriods ...int) *WMAAlignment {
	if len(shortPeriods) == 0 {
		shortPeriods = []int{3, 15, 30, 60}
	}
	return &WMAAlignment{
		shortPeriods: shortPeriods,
		longPeriod:   longPeriod,
		notional:     decimal.NewFromInt(500_000),
	}
}

func (w *WMAAlignment) Name() string {
	return "wma_alignment"
}

func (w *WMAAlignment) Description() string {
	return fmt.Sprintf("WMA %v aligned against WMA %d", w.shortPeriods, w.longPeriod)
}

func (w *WMAAlignment) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		History: w.longPeriod + 10,
	}
}

func (w *WMAAlignment) Init(cfg strategy.Config) error {
	var err error
	if w.longPeriod, err = strategy.IntParam(cfg.Params, "long_period", w.longPeriod); err != nil {
		return err
	}
	if w.notional, err = strategy.DecimalParam(cfg.Params, "notional", w.notional); err != nil {
		return err
	}
	if raw, ok := cfg.Params["short_periods"].([]any); ok {
		periods := make([]int, 0, len(raw))
		for i := range raw {
			p, err := strategy.IntParam(map[string]any{"p": raw[i]}, "p", 0)
			if err != nil {
				return fmt.Errorf("short_periods: %w", err)
			}
			periods = append(periods, p)
		}
		w.shortPeriods = periods
	}
	if len(w.shortPeriods) == 0 {
		return fmt.Errorf("short_periods must not be empty")
	}
	for _, p := range w.shortPeriods {
		if p <= 0 || p >= w.longPeriod {
			return fmt.Errorf("short period %d must be in (0, %d)", p, w.longPeriod)
		}
	}
	return nil
}

func (w *WMAAlignment) Analyze(ctx strategy.AnalysisContext) ([]core.Signal, error) {
	s := ctx.Series
	if s.Len() < w.longPeriod {
		return nil, nil // Not enough data
	}

	long, _ := indicator.WMA(s, w.longPeriod).Last()
	above, below := 0, 0
	meta := map[string]any{fmt.Sprintf("wma_%d", w.longPeriod): long}
	for _, p := range w.shortPeriods {
		v, ok := indicator.WMA(s, p).Last()
		if !ok {
			return nil, nil
		}
		meta[fmt.Sprintf("wma_%d", p)] = v
		switch {
		case v > long:
			above++
		case v < long:
			below++
		}
	}

	last, _ := s.Last()
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	sig := core.Signal{
		Symbol:      s.Instrument,
		Timeframe:   s.Timeframe,
		Price:       last.Price,
		GeneratedAt: now,
		Metadata:    meta,
	}

	switch len(w.shortPeriods) {
	case above:
		sig.Action = core.ActionBuy
		sig.Reason = fmt.Sprintf("all short WMAs above WMA %d", w.longPeriod)
		size := w.notional.Div(decimal.NewFromFloat(last.Price)).Round(8)
		sig.Size = &size
	case below:
		sig.Action = core.ActionSell
		sig.Reason = fmt.Sprintf("all short WMAs below WMA %d", w.longPeriod)
		sig.FullPosition = true
		if ctx.Holding != nil {
			h := *ctx.Holding
			sig.Size = &h
		}
	default:
		sig.Action = core.ActionHold
		sig.Reason = fmt.Sprintf("%d of %d short WMAs above WMA %d", above, len(w.shortPeriods), w.longPeriod)
	}
	return []core.Signal{sig}, nil
}
