// Package trend summarises the VWMA trend of many instrument/timeframe
// pairs and publishes the result as one immutable snapshot.
package trend

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/detector"
	"github.com/newthinker/aitrader/internal/indicator"
	"github.com/newthinker/aitrader/internal/series"
)

// SlopeSentinel replaces an infinite slope when the last reversal is the
// final sample.
const SlopeSentinel = 1e10

// ReversalMode selects how trend reversals are located on the diff-rate line.
type ReversalMode string

const (
	// ReversalSign marks every sign change of the short/long diff rate.
	ReversalSign ReversalMode = "sign"
	// ReversalExtrema marks local extrema of the diff rate.
	ReversalExtrema ReversalMode = "extrema"
)

// Params configures a summary computation.
type Params struct {
	ShortWindow int
	LongWindow  int
	Mode        ReversalMode
	MinDistance int
}

// DefaultParams returns the windows used for the trend board.
func DefaultParams() Params {
	return Params{ShortWindow: 3, LongWindow: 20, Mode: ReversalSign, MinDistance: detector.DefaultMinDistance}
}

// Validate checks the windows and mode.
func (p Params) Validate() error {
	if p.ShortWindow <= 0 || p.LongWindow <= p.ShortWindow {
		return fmt.Errorf("windows must satisfy 0 < short < long, got %d/%d", p.ShortWindow, p.LongWindow)
	}
	switch p.Mode {
	case ReversalSign, ReversalExtrema:
	default:
		return fmt.Errorf("unknown reversal mode %q", p.Mode)
	}
	return nil
}

// Summary is the trend state of one instrument/timeframe pair. Slope and
// AngleDegrees are nil when no reversal has been seen, which is distinct
// from a flat slope of 0.
type Summary struct {
	Instrument        string         `json:"instrument" yaml:"instrument"`
	Timeframe         core.Timeframe `json:"timeframe" yaml:"timeframe"`
	Slope             *float64       `json:"slope" yaml:"slope"`
	AngleDegrees      *float64       `json:"angle_degrees" yaml:"angle_degrees"`
	ReversalCount     int            `json:"reversal_count" yaml:"reversal_count"`
	ReversalDistances []float64      `json:"reversal_distances" yaml:"reversal_distances"`
	LastReversalAt    *time.Time     `json:"last_reversal_at,omitempty" yaml:"last_reversal_at,omitempty"`
	DiffRate          *float64       `json:"diff_rate,omitempty" yaml:"diff_rate,omitempty"`
	Label             Label          `json:"label" yaml:"label"`
	LastComputedAt    time.Time      `json:"last_computed_at" yaml:"last_computed_at"`
}

// Summarize computes the trend summary of s. The slope runs from the last
// reversal to the final sample of the diff-rate line in percent per minute.
func Summarize(s *series.Series, p Params, now time.Time) Summary {
	sum := Summary{
		Instrument:        s.Instrument,
		Timeframe:         s.Timeframe,
		ReversalDistances: []float64{},
		LastComputedAt:    now,
	}

	rate := indicator.DiffRate(indicator.VWMA(s, p.ShortWindow), indicator.VWMA(s, p.LongWindow))
	if v, ok := rate.Last(); ok {
		sum.DiffRate = &v
	}

	var reversals []core.ExtremumEvent
	if p.Mode == ReversalExtrema {
		reversals = detector.Extrema(rate, p.MinDistance)
	} else {
		reversals = detector.SignReversals(rate)
	}

	sum.ReversalCount = len(reversals)
	for i := 1; i < len(reversals); i++ {
		sum.ReversalDistances = append(sum.ReversalDistances, reversals[i].Time.Sub(reversals[i-1].Time).Minutes())
	}

	if len(reversals) > 0 {
		last := reversals[len(reversals)-1]
		at := last.Time
		sum.LastReversalAt = &at
		if end, y2, ok := endPoint(rate, last); ok {
			slope := slopeBetween(last.Time, last.Value, rate.Times[end], y2)
			angle := math.Atan(slope) * 180 / math.Pi
			sum.Slope = &slope
			sum.AngleDegrees = &angle
		}
	}

	sum.Label = Classify(sum)
	return sum
}

// endPoint finds the newest defined rate value at or after the reversal.
// A zero-volume tail leaves the newest values undefined, so the scan walks
// back toward the reversal. The reversal itself only counts when it sits on
// the final sample; otherwise there is nothing to measure a slope against.
func endPoint(rate indicator.Line, last core.ExtremumEvent) (int, float64, bool) {
	final := rate.Len() - 1
	for i := final; i > last.Index; i-- {
		if v, ok := rate.At(i); ok {
			return i, v, true
		}
	}
	if last.Index == final {
		return final, last.Value, true
	}
	return 0, 0, false
}

func slopeBetween(x1 time.Time, y1 float64, x2 time.Time, y2 float64) float64 {
	dx := x2.Sub(x1).Minutes()
	dy := y2 - y1
	if dx == 0 {
		if dy < 0 {
			return -SlopeSentinel
		}
		return SlopeSentinel
	}
	return dy / dx
}
