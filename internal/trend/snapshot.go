package trend

import (
	"sync/atomic"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// Failure records a pair skipped during a cycle.
type Failure struct {
	Instrument string         `json:"instrument" yaml:"instrument"`
	Timeframe  core.Timeframe `json:"timeframe" yaml:"timeframe"`
	Error      string         `json:"error" yaml:"error"`
	Retained   bool           `json:"retained" yaml:"retained"`
	At         time.Time      `json:"at" yaml:"at"`
}

// Snapshot is the result of one aggregation cycle. It is never modified
// after it has been published.
type Snapshot struct {
	Cycle       uint64                                `json:"cycle" yaml:"cycle"`
	GeneratedAt time.Time                             `json:"generated_at" yaml:"generated_at"`
	Trends      map[string]map[core.Timeframe]Summary `json:"trends" yaml:"trends"`
	Failures    []Failure                             `json:"failures" yaml:"failures"`
}

// Get returns the summary of one pair.
func (s *Snapshot) Get(instrument string, tf core.Timeframe) (Summary, bool) {
	if s == nil {
		return Summary{}, false
	}
	sum, ok := s.Trends[instrument][tf]
	return sum, ok
}

// Instrument returns a copy of the summaries of one instrument.
func (s *Snapshot) Instrument(instrument string) (map[core.Timeframe]Summary, bool) {
	if s == nil {
		return nil, false
	}
	byTF, ok := s.Trends[instrument]
	if !ok {
		return nil, false
	}
	out := make(map[core.Timeframe]Summary, len(byTF))
	for tf, sum := range byTF {
		out[tf] = sum
	}
	return out, true
}

// Pairs counts the summaries in the snapshot.
func (s *Snapshot) Pairs() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, byTF := range s.Trends {
		n += len(byTF)
	}
	return n
}

// Board holds the current snapshot. One writer publishes, any number of
// readers load without locking.
type Board struct {
	current atomic.Pointer[Snapshot]
}

// NewBoard creates a board holding an empty snapshot.
func NewBoard() *Board {
	b := &Board{}
	b.current.Store(&Snapshot{Trends: map[string]map[core.Timeframe]Summary{}, Failures: []Failure{}})
	return b
}

// Current returns the latest published snapshot.
func (b *Board) Current() *Snapshot {
	return b.current.Load()
}

// Publish replaces the current snapshot.
func (b *Board) Publish(s *Snapshot) {
	b.current.Store(s)
}
