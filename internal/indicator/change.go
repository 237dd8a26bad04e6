package indicator

import "math"

func nan() float64 { return math.NaN() }

func isNaN(v float64) bool { return math.IsNaN(v) }

// PctChange returns the percent change between consecutive defined values.
func PctChange(l Line) Line {
	line := newLine(l.Name+"_pct", l.Times)
	for i := 1; i < l.Len(); i++ {
		prev, ok1 := l.At(i - 1)
		cur, ok2 := l.At(i)
		if !ok1 || !ok2 || prev == 0 {
			continue
		}
		line.Values[i] = (cur - prev) / prev * 100
	}
	return line
}

// DiffRate returns (short-long)/long*100 wherever both lines are defined.
func DiffRate(short, long Line) Line {
	line := newLine(short.Name+"_diff_"+long.Name, short.Times)
	for i := range line.Values {
		s, ok1 := short.At(i)
		l, ok2 := long.At(i)
		if !ok1 || !ok2 || l == 0 {
			continue
		}
		line.Values[i] = (s - l) / l * 100
	}
	return line
}

// UpDownRates is the mean percent move of rising and falling steps.
type UpDownRates struct {
	AvgUp     float64 `json:"avg_up"`
	AvgDown   float64 `json:"avg_down"`
	UpCount   int     `json:"up_count"`
	DownCount int     `json:"down_count"`
}

// AverageUpDown summarises the per-step percent changes of l, split by
// direction. Flat steps count toward neither side.
func AverageUpDown(l Line) UpDownRates {
	var r UpDownRates
	var up, down float64
	for _, v := range PctChange(l).Values {
		switch {
		case isNaN(v) || v == 0:
		case v > 0:
			up += v
			r.UpCount++
		default:
			down += v
			r.DownCount++
		}
	}
	if r.UpCount > 0 {
		r.AvgUp = up / float64(r.UpCount)
	}
	if r.DownCount > 0 {
		r.AvgDown = down / float64(r.DownCount)
	}
	return r
}
