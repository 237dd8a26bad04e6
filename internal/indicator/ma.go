package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/newthinker/aitrader/internal/series"
)

// SMA calculates the simple moving average of price.
func SMA(s *series.Series, window int) Line {
	line := newLine(fmt.Sprintf("sma_%d", window), s.Times())
	if window <= 0 || s.Len() < window {
		return line
	}
	out := talib.Sma(s.Prices(), window)
	copy(line.Values[window-1:], out[window-1:])
	return line
}

// WMA calculates the linearly weighted moving average of price, newest
// sample weighted window, oldest weighted 1.
func WMA(s *series.Series, window int) Line {
	line := newLine(fmt.Sprintf("wma_%d", window), s.Times())
	if window <= 0 || s.Len() < window {
		return line
	}
	out := talib.Wma(s.Prices(), window)
	copy(line.Values[window-1:], out[window-1:])
	return line
}

// VWMA calculates the volume-weighted moving average of price. A window
// with zero total volume is undefined.
func VWMA(s *series.Series, window int) Line {
	line := newLine(fmt.Sprintf("vwma_%d", window), s.Times())
	if window <= 0 {
		return line
	}
	for i := window - 1; i < s.Len(); i++ {
		var pv, v float64
		for _, smp := range s.Samples[i-window+1 : i+1] {
			pv += smp.Price * smp.Volume
			v += smp.Volume
		}
		if v == 0 {
			continue
		}
		line.Values[i] = pv / v
	}
	return line
}

// Gap returns |a-b|/b for every index where both lines are defined.
func Gap(a, b Line) Line {
	line := newLine(a.Name+"_gap_"+b.Name, a.Times)
	for i := range line.Values {
		av, ok1 := a.At(i)
		bv, ok2 := b.At(i)
		if !ok1 || !ok2 || bv == 0 {
			continue
		}
		line.Values[i] = math.Abs(av-bv) / bv
	}
	return line
}
