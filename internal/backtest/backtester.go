// Package backtest replays strategies over a fetched window of samples.
package backtest

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/series"
	"github.com/newthinker/aitrader/internal/strategy"
)

// SeriesFetcher supplies the history to replay.
type SeriesFetcher interface {
	Fetch(ctx context.Context, instrument string, tf core.Timeframe, count int) (*series.Series, error)
}

// Backtester runs strategy backtests against historical data
type Backtester struct {
	fetcher SeriesFetcher
}

// New creates a new Backtester reading history from fetcher.
func New(fetcher SeriesFetcher) *Backtester {
	return &Backtester{fetcher: fetcher}
}

// Run fetches count samples and replays strat once per sample, as if each
// sample were the newest one. A strategy sees at most RequiredData().History
// samples ending at the replayed one.
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, instrument string, tf core.Timeframe, count int) (*Result, error) {
	ser, err := b.fetcher.Fetch(ctx, instrument, tf, count)
	if err != nil {
		return nil, err
	}
	return Replay(ctx, strat, ser)
}

// Replay runs strat over an already fetched series.
func Replay(ctx context.Context, strat strategy.Strategy, ser *series.Series) (*Result, error) {
	if ser.Len() == 0 {
		return nil, core.Errorf(core.ErrInsufficientHistory, "no samples to replay")
	}

	windowSize := strat.RequiredData().History
	if windowSize <= 0 {
		windowSize = 1
	}

	var (
		allSignals []core.Signal
		held       = decimal.Zero
	)

	for i := 0; i < ser.Len(); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		window := ser.Slice(i-windowSize+1, i+1)
		holding := held
		analysisCtx := strategy.AnalysisContext{
			Series:  window,
			Holding: &holding,
			Now:     ser.Samples[i].Time,
		}

		signals, err := strat.Analyze(analysisCtx)
		if err != nil {
			continue // Skip samples the strategy cannot evaluate yet
		}

		for _, sig := range signals {
			sig.Strategy = strat.Name()
			if sig.Price == 0 {
				sig.Price = ser.Samples[i].Price
			}
			switch sig.Action {
			case core.ActionBuy:
				if held.IsZero() && sig.Size != nil {
					held = *sig.Size
				} else if held.IsZero() {
					held = decimal.NewFromInt(1)
				}
			case core.ActionSell:
				held = decimal.Zero
			}
			allSignals = append(allSignals, sig)
		}
	}

	trades := signalsToTrades(allSignals, ser)

	first, _ := ser.Slice(0, 1).Last()
	last, _ := ser.Last()
	return &Result{
		Strategy:   strat.Name(),
		Instrument: ser.Instrument,
		Timeframe:  ser.Timeframe,
		From:       first.Time,
		To:         last.Time,
		Samples:    ser.Len(),
		Signals:    allSignals,
		Trades:     trades,
		Stats:      CalculateStats(trades),
	}, nil
}

// signalsToTrades pairs each BUY taken while flat with the next SELL.
// WAIT and HOLD never open or close a position.
func signalsToTrades(signals []core.Signal, ser *series.Series) []Trade {
	var trades []Trade
	var openTrade *Trade

	for _, sig := range signals {
		switch sig.Action {
		case core.ActionBuy:
			if openTrade == nil {
				openTrade = &Trade{
					Entry:      sig,
					EntryPrice: sig.Price,
					EntryAt:    sig.GeneratedAt,
				}
			}
		case core.ActionSell:
			if openTrade != nil {
				sigCopy := sig
				openTrade.Exit = &sigCopy
				openTrade.ExitPrice = sig.Price
				openTrade.ExitAt = sig.GeneratedAt
				openTrade.Return = (openTrade.ExitPrice - openTrade.EntryPrice) / openTrade.EntryPrice
				trades = append(trades, *openTrade)
				openTrade = nil
			}
		}
	}

	// Mark an open position to the last price.
	if openTrade != nil {
		if last, ok := ser.Last(); ok {
			openTrade.ExitPrice = last.Price
			openTrade.ExitAt = last.Time
			openTrade.Return = (openTrade.ExitPrice - openTrade.EntryPrice) / openTrade.EntryPrice
		}
		trades = append(trades, *openTrade)
	}

	return trades
}
