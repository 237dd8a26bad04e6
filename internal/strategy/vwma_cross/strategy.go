// Package vwma_cross classifies the latest state of a short/long VWMA pair
// into WAIT, BUY, SELL or HOLD recommendations.
package vwma_cross

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/detector"
	"github.com/newthinker/aitrader/internal/indicator"
	"github.com/newthinker/aitrader/internal/strategy"
)

const (
	defaultThreshold      = 0.03
	defaultCloseThreshold = 0.001
	defaultRecentWindow   = 3
	defaultWhipsawWindow  = 5
)

var defaultNotional = decimal.NewFromInt(500_000)

// Classifier implements the VWMA cross state machine.
type Classifier struct {
	shortWindow    int
	longWindow     int
	notional       decimal.Decimal
	threshold      float64
	closeThreshold float64
	recentWindow   int
	whipsawWindow  int
	closedOnly     bool
}

// New creates a classifier with default thresholds.
func New(shortWindow, longWindow int) *Classifier {
	return &Classifier{
		shortWindow:    shortWindow,
		longWindow:     longWindow,
		notional:       defaultNotional,
		threshold:      defaultThreshold,
		closeThreshold: defaultCloseThreshold,
		recentWindow:   defaultRecentWindow,
		whipsawWindow:  defaultWhipsawWindow,
	}
}

func (c *Classifier) Name() string {
	return "vwma_cross"
}

func (c *Classifier) Description() string {
	return fmt.Sprintf("VWMA cross classifier (%d/%d)", c.shortWindow, c.longWindow)
}

func (c *Classifier) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		History: c.longWindow * 4,
	}
}

func (c *Classifier) Init(cfg strategy.Config) error {
	var err error
	p := cfg.Params
	if c.shortWindow, err = strategy.IntParam(p, "short_window", c.shortWindow); err != nil {
		return err
	}
	if c.longWindow, err = strategy.IntParam(p, "long_window", c.longWindow); err != nil {
		return err
	}
	if c.notional, err = strategy.DecimalParam(p, "notional", c.notional); err != nil {
		return err
	}
	if c.threshold, err = strategy.FloatParam(p, "threshold", c.threshold); err != nil {
		return err
	}
	if c.closeThreshold, err = strategy.FloatParam(p, "close_threshold", c.closeThreshold); err != nil {
		return err
	}
	if c.recentWindow, err = strategy.IntParam(p, "recent_window", c.recentWindow); err != nil {
		return err
	}
	if c.whipsawWindow, err = strategy.IntParam(p, "whipsaw_window", c.whipsawWindow); err != nil {
		return err
	}
	if c.closedOnly, err = strategy.BoolParam(p, "closed_only", c.closedOnly); err != nil {
		return err
	}

	if c.shortWindow <= 0 || c.longWindow <= c.shortWindow {
		return fmt.Errorf("windows must satisfy 0 < short < long, got %d/%d", c.shortWindow, c.longWindow)
	}
	if !c.notional.IsPositive() {
		return fmt.Errorf("notional must be positive")
	}
	return nil
}

func (c *Classifier) Analyze(ctx strategy.AnalysisContext) ([]core.Signal, error) {
	s := ctx.Series
	if c.closedOnly {
		s = s.Closed()
	}
	last, ok := s.Last()
	if !ok {
		return nil, core.Errorf(core.ErrInsufficientHistory, "empty series")
	}

	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	short := indicator.VWMA(s, c.shortWindow)
	long := indicator.VWMA(s, c.longWindow)
	events := detector.Crosses(short, long)
	n := s.Len()

	base := core.Signal{
		Symbol:      s.Instrument,
		Timeframe:   s.Timeframe,
		Price:       last.Price,
		GeneratedAt: now,
		Metadata:    map[string]any{},
	}
	if v, ok := short.Last(); ok {
		base.Metadata["short_vwma"] = v
	}
	if v, ok := long.Last(); ok {
		base.Metadata["long_vwma"] = v
	}
	if e, ok := detector.LastCross(events); ok {
		base.Metadata["last_cross"] = string(e.Kind)
		base.Metadata["last_cross_at"] = e.Time
	}

	if golden, dead := detector.Within(events, n-c.whipsawWindow); golden && dead {
		return []core.Signal{c.signal(base, core.ActionWait, "golden and dead cross within the last %d samples", c.whipsawWindow)}, nil
	}

	golden, dead := detector.Within(events, n-c.recentWindow)
	if golden {
		sig := c.signal(base, core.ActionBuy, "golden cross within the last %d samples", c.recentWindow)
		sig.Size = c.buySize(last.Price)
		return []core.Signal{sig}, nil
	}
	if dead {
		sig := c.signal(base, core.ActionSell, "dead cross within the last %d samples", c.recentWindow)
		c.sellAll(&sig, ctx.Holding)
		return []core.Signal{sig}, nil
	}

	longNow, ok := long.Last()
	if !ok {
		return []core.Signal{c.signal(base, core.ActionHold, "insufficient history for VWMA %d", c.longWindow)}, nil
	}

	from := 0
	if e, ok := detector.LastCross(events); ok {
		from = e.Index
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for _, smp := range s.Samples[from:] {
		hi = math.Max(hi, smp.Price)
		lo = math.Min(lo, smp.Price)
	}

	price := last.Price
	fallRate := (hi - price) / hi
	riseRate := (price - lo) / lo
	gap := math.Abs(price-longNow) / longNow
	base.Metadata["fall_rate"] = fallRate
	base.Metadata["rise_rate"] = riseRate
	base.Metadata["vwma_gap"] = gap

	var signals []core.Signal
	switch {
	case fallRate >= c.threshold:
		sig := c.signal(base, core.ActionSell, "price fell %.2f%% from the high since the last cross", fallRate*100)
		c.sellAll(&sig, ctx.Holding)
		signals = append(signals, sig)
	case gap <= c.closeThreshold:
		sig := c.signal(base, core.ActionSell, "price within %.2f%% of long VWMA", gap*100)
		c.sellAll(&sig, ctx.Holding)
		signals = append(signals, sig)
	}
	switch {
	case riseRate >= c.threshold:
		sig := c.signal(base, core.ActionBuy, "price rose %.2f%% from the low since the last cross", riseRate*100)
		sig.Size = c.buySize(price)
		signals = append(signals, sig)
	case gap <= c.closeThreshold:
		sig := c.signal(base, core.ActionBuy, "price within %.2f%% of long VWMA", gap*100)
		sig.Size = c.buySize(price)
		signals = append(signals, sig)
	}

	if len(signals) == 0 {
		signals = append(signals, c.signal(base, core.ActionHold, "no threshold reached"))
	}
	return signals, nil
}

func (c *Classifier) signal(base core.Signal, action core.Action, format string, args ...any) core.Signal {
	sig := base
	sig.Action = action
	sig.Reason = fmt.Sprintf(format, args...)
	sig.Metadata = make(map[string]any, len(base.Metadata))
	for k, v := range base.Metadata {
		sig.Metadata[k] = v
	}
	return sig
}

func (c *Classifier) buySize(price float64) *decimal.Decimal {
	if price <= 0 {
		return nil
	}
	size := c.notional.Div(decimal.NewFromFloat(price)).Round(8)
	return &size
}

func (c *Classifier) sellAll(sig *core.Signal, holding *decimal.Decimal) {
	sig.FullPosition = true
	if holding != nil {
		h := *holding
		sig.Size = &h
	}
}
