// Package detector finds crossings, local extrema and sign reversals in
// indicator lines.
package detector

import (
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/indicator"
)

// Crosses reports every index where short moves through long. GOLDEN needs
// short > long now and short <= long one sample earlier; DEAD is the mirror.
// Kinds alternate: touching long and returning to the same side does not
// emit the same kind twice.
func Crosses(short, long indicator.Line) []core.CrossEvent {
	var events []core.CrossEvent
	var last core.CrossKind

	n := min(short.Len(), long.Len())
	for i := 1; i < n; i++ {
		s0, ok1 := short.At(i - 1)
		l0, ok2 := long.At(i - 1)
		s1, ok3 := short.At(i)
		l1, ok4 := long.At(i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}

		var kind core.CrossKind
		switch {
		case s1 > l1 && s0 <= l0:
			kind = core.CrossGolden
		case s1 < l1 && s0 >= l0:
			kind = core.CrossDead
		default:
			continue
		}
		if kind == last {
			continue
		}
		last = kind
		events = append(events, core.CrossEvent{Index: i, Time: short.Times[i], Kind: kind})
	}
	return events
}

// LastCross returns the most recent event, if any.
func LastCross(events []core.CrossEvent) (core.CrossEvent, bool) {
	if len(events) == 0 {
		return core.CrossEvent{}, false
	}
	return events[len(events)-1], true
}

// Within reports which kinds occurred at or after index from.
func Within(events []core.CrossEvent, from int) (golden, dead bool) {
	for i := len(events) - 1; i >= 0 && events[i].Index >= from; i-- {
		switch events[i].Kind {
		case core.CrossGolden:
			golden = true
		case core.CrossDead:
			dead = true
		}
	}
	return golden, dead
}
