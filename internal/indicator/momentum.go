package indicator

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/newthinker/aitrader/internal/series"
)

// RSI calculates the relative strength index using simple rolling means of
// gains and losses. A window with no losses reads 100. The first defined
// value is at index window because the first delta is at index 1.
func RSI(s *series.Series, window int) Line {
	line := newLine(fmt.Sprintf("rsi_%d", window), s.Times())
	prices := s.Prices()
	if window <= 0 || len(prices) <= window {
		return line
	}

	gains := make([]float64, len(prices))
	losses := make([]float64, len(prices))
	gains[0], losses[0] = nan(), nan()
	for i := 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := rolling(gains, window, mean)
	avgLoss := rolling(losses, window, mean)
	for i := range line.Values {
		if isNaN(avgGain[i]) || isNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			line.Values[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		line.Values[i] = 100 - 100/(1+rs)
	}
	return line
}

// StochRSIResult bundles the raw stochastic RSI and its smoothed K and D.
type StochRSIResult struct {
	Raw Line
	K   Line
	D   Line
}

// StochRSI calculates (RSI-min)/(max-min) over window, then smooths it with
// smoothK and the result again with smoothD. A flat RSI window is undefined.
func StochRSI(s *series.Series, window, smoothK, smoothD int) StochRSIResult {
	rsi := RSI(s, window)

	lo := rolling(rsi.Values, window, minOf)
	hi := rolling(rsi.Values, window, maxOf)

	raw := newLine(fmt.Sprintf("stochrsi_%d", window), rsi.Times)
	for i := range raw.Values {
		if isNaN(lo[i]) || isNaN(hi[i]) || hi[i] == lo[i] {
			continue
		}
		raw.Values[i] = (rsi.Values[i] - lo[i]) / (hi[i] - lo[i])
	}

	k := Line{Name: raw.Name + "_k", Times: raw.Times, Values: rolling(raw.Values, smoothK, mean)}
	d := Line{Name: raw.Name + "_d", Times: raw.Times, Values: rolling(k.Values, smoothD, mean)}
	return StochRSIResult{Raw: raw, K: k, D: d}
}

// ROC calculates the percentage rate of change over window samples.
func ROC(s *series.Series, window int) Line {
	line := newLine(fmt.Sprintf("roc_%d", window), s.Times())
	prices := s.Prices()
	if window <= 0 || len(prices) <= window {
		return line
	}
	out := talib.Roc(prices, window)
	for i := window; i < len(prices); i++ {
		if prices[i-window] == 0 {
			continue
		}
		line.Values[i] = out[i]
	}
	return line
}
