package wma_alignment

import (
	"testing"
	"time"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/series"
	"github.com/newthinker/aitrader/internal/strategy"
)

func makeSeries(prices []float64) *series.Series {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]core.Sample, len(prices))
	for i, p := range prices {
		samples[i] = core.Sample{Time: start.Add(time.Duration(i) * time.Hour), Price: p, Volume: 1}
	}
	return series.New("KRW-ETH", core.Timeframe1h, samples)
}

func ramp(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

func TestWMAAlignment_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*WMAAlignment)(nil)
}

func TestWMAAlignment_Actions(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   core.Action
	}{
		{"rising", ramp(40, 100, 1), core.ActionBuy},
		{"falling", ramp(40, 200, -1), core.ActionSell},
		{"flat", ramp(40, 100, 0), core.ActionHold},
	}

	s := New(20, 3, 5, 10)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			signals, err := s.Analyze(strategy.AnalysisContext{Series: makeSeries(tc.prices)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(signals) != 1 {
				t.Fatalf("expected 1 signal, got %d", len(signals))
			}
			if signals[0].Action != tc.want {
				t.Errorf("expected %s, got %s", tc.want, signals[0].Action)
			}
		})
	}
}

func TestWMAAlignment_NotEnoughData(t *testing.T) {
	signals, err := New(120).Analyze(strategy.AnalysisContext{Series: makeSeries(ramp(50, 1, 1))})
	if err != nil || signals != nil {
		t.Errorf("expected nil, nil; got %v, %v", signals, err)
	}
}

func TestWMAAlignment_Init(t *testing.T) {
	s := New(120)
	err := s.Init(strategy.Config{Params: map[string]any{
		"long_period":   50,
		"short_periods": []any{5, 10.0},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.longPeriod != 50 || len(s.shortPeriods) != 2 || s.shortPeriods[1] != 10 {
		t.Errorf("params not applied: %d %v", s.longPeriod, s.shortPeriods)
	}

	if err := New(10).Init(strategy.Config{}); err == nil {
		t.Error("expected error when default short periods exceed the long period")
	}
}
