package backtest

import (
	"math"
	"time"
)

// CalculateStats folds trades into Stats. Closed trades are compounded in
// order into an equity curve starting at 1.
func CalculateStats(trades []Trade) Stats {
	st := Stats{TotalTrades: len(trades)}

	var (
		returns          []float64
		held             time.Duration
		gain, loss       float64
		equity, peak, dd = 1.0, 1.0, 0.0
	)
	for _, t := range trades {
		if t.Open() {
			r := t.Return * 100
			st.OpenReturn = &r
			continue
		}

		if len(returns) == 0 || t.Return > st.BestTrade {
			st.BestTrade = t.Return
		}
		if len(returns) == 0 || t.Return < st.WorstTrade {
			st.WorstTrade = t.Return
		}
		returns = append(returns, t.Return)
		held += t.Held()

		if t.Return > 0 {
			st.WinningTrades++
			gain += t.Return
		} else {
			st.LosingTrades++
			loss -= t.Return
		}

		equity *= 1 + t.Return
		peak = math.Max(peak, equity)
		dd = math.Max(dd, (peak-equity)/peak)
	}

	n := len(returns)
	if n == 0 {
		return st
	}
	st.WinRate = float64(st.WinningTrades) / float64(n) * 100
	st.TotalReturn = (equity - 1) * 100
	st.AvgReturn = mean(returns) * 100
	st.BestTrade *= 100
	st.WorstTrade *= 100
	st.MaxDrawdown = dd * 100
	if loss > 0 {
		st.ProfitFactor = gain / loss
	}
	st.SharpeRatio = sharpe(returns)
	st.AvgHold = held / time.Duration(n)
	return st
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sharpe is the mean over the sample standard deviation with a zero
// risk-free rate.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	var ss float64
	for _, r := range returns {
		ss += (r - m) * (r - m)
	}
	sd := math.Sqrt(ss / float64(len(returns)-1))
	if sd == 0 {
		return 0
	}
	return m / sd
}
