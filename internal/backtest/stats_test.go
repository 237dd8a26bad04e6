package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/aitrader/internal/core"
)

func closed(ret float64, held time.Duration) Trade {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return Trade{Return: ret, EntryAt: at, ExitAt: at.Add(held), Exit: &core.Signal{Action: core.ActionSell}}
}

func TestTrade_Open(t *testing.T) {
	assert.True(t, Trade{Entry: core.Signal{Symbol: "KRW-BTC"}}.Open())
	assert.False(t, closed(0.1, time.Hour).Open())
	assert.Equal(t, 3*time.Hour, closed(0, 3*time.Hour).Held())
}

func TestCalculateStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, CalculateStats(nil))
}

func TestCalculateStats_Closed(t *testing.T) {
	st := CalculateStats([]Trade{
		closed(0.10, time.Hour),
		closed(0.05, 3*time.Hour),
		closed(-0.20, time.Hour),
		closed(0.10, 3*time.Hour),
	})

	assert.Equal(t, 4, st.TotalTrades)
	assert.Equal(t, 3, st.WinningTrades)
	assert.Equal(t, 1, st.LosingTrades)
	assert.InDelta(t, 75, st.WinRate, 1e-9)
	// 1.1 * 1.05 * 0.8 * 1.1 = 1.0164
	assert.InDelta(t, 1.64, st.TotalReturn, 1e-6)
	assert.InDelta(t, 1.25, st.AvgReturn, 1e-9)
	assert.InDelta(t, 10, st.BestTrade, 1e-9)
	assert.InDelta(t, -20, st.WorstTrade, 1e-9)
	assert.InDelta(t, 20, st.MaxDrawdown, 1e-9)
	assert.InDelta(t, 1.25, st.ProfitFactor, 1e-9)
	assert.Equal(t, 2*time.Hour, st.AvgHold)
	assert.Nil(t, st.OpenReturn)
}

func TestCalculateStats_OpenTradeOnlyMarked(t *testing.T) {
	st := CalculateStats([]Trade{
		closed(0.10, time.Hour),
		{Return: 0.05},
	})

	assert.Equal(t, 2, st.TotalTrades)
	assert.Equal(t, 1, st.WinningTrades)
	assert.InDelta(t, 10, st.TotalReturn, 1e-9)
	require.NotNil(t, st.OpenReturn)
	assert.InDelta(t, 5, *st.OpenReturn, 1e-9)
}

func TestCalculateStats_NoLossesNoProfitFactor(t *testing.T) {
	st := CalculateStats([]Trade{closed(0.02, time.Hour), closed(0.04, time.Hour)})
	assert.Zero(t, st.ProfitFactor)
	assert.Zero(t, st.MaxDrawdown)
	assert.InDelta(t, 100, st.WinRate, 1e-9)
}

func TestSharpe(t *testing.T) {
	// mean 0.025, sample stddev 0.10607
	assert.InDelta(t, 0.2357, sharpe([]float64{0.10, -0.05}), 1e-3)
	assert.Zero(t, sharpe([]float64{0.05}))
	assert.Zero(t, sharpe([]float64{0.05, 0.05}))
}
