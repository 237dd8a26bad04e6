// Package strategy defines the classifier contract and the engine that runs
// registered classifiers over a fetched series.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/series"
)

// Config carries the YAML params of one strategy.
type Config struct {
	Enabled bool
	Params  map[string]any
}

// DataRequirements tells the caller how many samples to fetch.
type DataRequirements struct {
	History int
}

// AnalysisContext is everything a strategy may look at.
type AnalysisContext struct {
	Series *series.Series
	// Holding is the held quantity of the base asset, nil when unknown.
	Holding *decimal.Decimal
	Now     time.Time
}

// Symbol returns the instrument under analysis.
func (c AnalysisContext) Symbol() string {
	if c.Series == nil {
		return ""
	}
	return c.Series.Instrument
}

// Strategy turns a series into recommendations. Init may be called again
// to reconfigure; Analyze must not retain the context.
type Strategy interface {
	Name() string
	Description() string
	RequiredData() DataRequirements
	Init(cfg Config) error
	Analyze(ctx AnalysisContext) ([]core.Signal, error)
}
