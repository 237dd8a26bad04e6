// Package indicator computes timestamp-aligned technical indicator lines.
// Every function is pure: the same input always yields the same output.
package indicator

import (
	"math"
	"time"

	"github.com/newthinker/aitrader/internal/series"
)

// Line is an indicator aligned one-to-one with its source samples.
// Undefined entries hold NaN.
type Line struct {
	Name   string
	Times  []time.Time
	Values []float64
}

func newLine(name string, times []time.Time) Line {
	values := make([]float64, len(times))
	for i := range values {
		values[i] = math.NaN()
	}
	return Line{Name: name, Times: times, Values: values}
}

// FromSeries exposes the raw price column as a Line.
func FromSeries(s *series.Series) Line {
	return Line{Name: "price", Times: s.Times(), Values: s.Prices()}
}

// Len returns the number of entries.
func (l Line) Len() int {
	return len(l.Values)
}

// At returns the value at i and whether it is defined.
func (l Line) At(i int) (float64, bool) {
	if i < 0 || i >= len(l.Values) {
		return math.NaN(), false
	}
	v := l.Values[i]
	return v, !math.IsNaN(v)
}

// Defined reports whether the value at i is defined.
func (l Line) Defined(i int) bool {
	_, ok := l.At(i)
	return ok
}

// Last returns the newest value.
func (l Line) Last() (float64, bool) {
	return l.At(len(l.Values) - 1)
}

// Slice returns entries [from, to).
func (l Line) Slice(from, to int) Line {
	return Line{Name: l.Name, Times: l.Times[from:to], Values: l.Values[from:to]}
}

// rolling applies fn to every full window of values. A window containing
// an undefined value yields NaN.
func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func mean(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

func minOf(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(w []float64) float64 {
	m := w[0]
	for _, v := range w[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
