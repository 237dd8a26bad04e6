package peak_trade

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/series"
	"github.com/newthinker/aitrader/internal/strategy"
)

func makeSeries(prices []float64) *series.Series {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]core.Sample, len(prices))
	for i, p := range prices {
		samples[i] = core.Sample{Time: start.Add(time.Duration(i) * 3 * time.Minute), Price: p, Volume: 1}
	}
	return series.New("KRW-XRP", core.Timeframe3m, samples)
}

func TestPeakTrade_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*PeakTrade)(nil)
}

func TestPeakTrade_TroughWithUpTrend(t *testing.T) {
	// VWMA(2): 9.5 8.5 7.5 6.5 6.55 7.3, trough at index 4 which is not n-2
	prices := []float64{10, 9, 8, 7, 6, 7.1, 7.5}
	s := makeSeries(prices)
	p := New(2)

	signals, err := p.Analyze(strategy.AnalysisContext{Series: s})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signal, got %d", len(signals))
	}

	// VWMA(2): 9.5 8.5 7.5 6.9 6.85 7.2, trough at index 5 = n-2
	// and prices 6.8, 6.9, 7.5 are rising
	s = makeSeries([]float64{10, 9, 8, 7, 6.8, 6.9, 7.5})
	signals, err = p.Analyze(strategy.AnalysisContext{Series: s})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 || signals[0].Action != core.ActionBuy {
		t.Fatalf("expected one buy, got %+v", signals)
	}
	if signals[0].Price != 6.9 {
		t.Errorf("expected last closed price 6.9, got %f", signals[0].Price)
	}
	if signals[0].Size == nil || !signals[0].Size.IsPositive() {
		t.Error("expected positive size")
	}

	// the same trough is traded only once
	signals, _ = p.Analyze(strategy.AnalysisContext{Series: s})
	if len(signals) != 0 {
		t.Errorf("expected trough to be traded once, got %d signals", len(signals))
	}
}

func TestPeakTrade_NoBuyWhenHolding(t *testing.T) {
	s := makeSeries([]float64{10, 9, 8, 7, 6.8, 6.9, 7.5})
	holding := decimal.NewFromInt(3)

	signals, err := New(2).Analyze(strategy.AnalysisContext{Series: s, Holding: &holding})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no buy while holding, got %d signals", len(signals))
	}
}

func TestPeakTrade_SellOnPeak(t *testing.T) {
	// VWMA(2): 1.5 2.5 3.5 4.1 4.15 3.8 -> peak at index 5 = n-2, prices 4.2, 4.1, 3.5 falling
	s := makeSeries([]float64{1, 2, 3, 4, 4.2, 4.1, 3.5})
	holding := decimal.RequireFromString("1.25")

	signals, err := New(2).Analyze(strategy.AnalysisContext{Series: s, Holding: &holding})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 || signals[0].Action != core.ActionSell {
		t.Fatalf("expected one sell, got %+v", signals)
	}
	if !signals[0].FullPosition || !signals[0].Size.Equal(holding) {
		t.Errorf("expected full position of %s, got %v", holding, signals[0].Size)
	}

	empty := decimal.Zero
	signals, _ = New(2).Analyze(strategy.AnalysisContext{Series: s, Holding: &empty})
	if len(signals) != 0 {
		t.Errorf("expected no sell without a position, got %d signals", len(signals))
	}
}

func TestPeakTrade_NotEnoughData(t *testing.T) {
	signals, err := New(5).Analyze(strategy.AnalysisContext{Series: makeSeries([]float64{1, 2, 3})})
	if err != nil || signals != nil {
		t.Errorf("expected nil, nil; got %v, %v", signals, err)
	}
}
