// Package series holds time-ordered price/volume samples for one
// instrument and timeframe.
package series

import (
	"sort"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// Series is an ascending, duplicate-free run of samples. It is never
// mutated after construction; derived views share the backing array.
type Series struct {
	Instrument string
	Timeframe  core.Timeframe
	Samples    []core.Sample
}

// New sorts samples ascending by time and collapses duplicate timestamps
// to the last record received.
func New(instrument string, tf core.Timeframe, samples []core.Sample) *Series {
	sorted := make([]core.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for _, s := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(s.Time) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}

	return &Series{Instrument: instrument, Timeframe: tf, Samples: out}
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Samples)
}

// Prices returns the price column.
func (s *Series) Prices() []float64 {
	out := make([]float64, len(s.Samples))
	for i, p := range s.Samples {
		out[i] = p.Price
	}
	return out
}

// Volumes returns the volume column.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Samples))
	for i, p := range s.Samples {
		out[i] = p.Volume
	}
	return out
}

// Times returns the timestamp column.
func (s *Series) Times() []time.Time {
	out := make([]time.Time, len(s.Samples))
	for i, p := range s.Samples {
		out[i] = p.Time
	}
	return out
}

// Last returns the newest sample.
func (s *Series) Last() (core.Sample, bool) {
	if s.Len() == 0 {
		return core.Sample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Closed drops the newest sample, which the exchange still updates while
// its bucket is open.
func (s *Series) Closed() *Series {
	if s.Len() == 0 {
		return s
	}
	return s.Slice(0, s.Len()-1)
}

// Slice returns samples [from, to) as a new Series header.
func (s *Series) Slice(from, to int) *Series {
	if from < 0 {
		from = 0
	}
	if to > s.Len() {
		to = s.Len()
	}
	if from > to {
		from = to
	}
	return &Series{Instrument: s.Instrument, Timeframe: s.Timeframe, Samples: s.Samples[from:to]}
}

// Tail returns the newest n samples.
func (s *Series) Tail(n int) *Series {
	return s.Slice(s.Len()-n, s.Len())
}
