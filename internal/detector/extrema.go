package detector

import (
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/indicator"
)

// DefaultMinDistance is the minimum index gap between reported extrema.
const DefaultMinDistance = 3

// Extrema finds strict local maxima and minima of l. Plateaus are never
// reported. Reported extrema are at least minDistance indices apart: a
// candidate that falls inside the distance replaces the pending extremum
// only when it has the same kind and is strictly stronger, otherwise it is
// dropped.
func Extrema(l indicator.Line, minDistance int) []core.ExtremumEvent {
	if minDistance <= 0 {
		minDistance = DefaultMinDistance
	}

	var out []core.ExtremumEvent
	for i := 1; i < l.Len()-1; i++ {
		prev, ok1 := l.At(i - 1)
		cur, ok2 := l.At(i)
		next, ok3 := l.At(i + 1)
		if !ok1 || !ok2 || !ok3 {
			continue
		}

		var kind core.ExtremumKind
		switch {
		case cur > prev && cur > next:
			kind = core.ExtremumPeak
		case cur < prev && cur < next:
			kind = core.ExtremumTrough
		default:
			continue
		}
		cand := core.ExtremumEvent{Index: i, Time: l.Times[i], Kind: kind, Value: cur}

		if n := len(out); n > 0 && cand.Index-out[n-1].Index < minDistance {
			if stronger(cand, out[n-1]) {
				out[n-1] = cand
			}
			continue
		}
		out = append(out, cand)
	}
	return out
}

func stronger(cand, pending core.ExtremumEvent) bool {
	if cand.Kind != pending.Kind {
		return false
	}
	if cand.Kind == core.ExtremumPeak {
		return cand.Value > pending.Value
	}
	return cand.Value < pending.Value
}

// SignReversals reports every index where l changes sign between two
// consecutive defined values. Negative to positive is a TROUGH, positive
// to negative a PEAK. Zero readings carry no sign and are skipped.
func SignReversals(l indicator.Line) []core.ExtremumEvent {
	var out []core.ExtremumEvent
	prevSign := 0
	for i := 0; i < l.Len(); i++ {
		v, ok := l.At(i)
		if !ok {
			continue
		}
		sign := 0
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if prevSign != 0 && sign != prevSign {
			kind := core.ExtremumTrough
			if sign < 0 {
				kind = core.ExtremumPeak
			}
			out = append(out, core.ExtremumEvent{Index: i, Time: l.Times[i], Kind: kind, Value: v})
		}
		prevSign = sign
	}
	return out
}
