package interaction

import (
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

// Highlight is the ordered set of cells a proposal covers. Each entry is a
// cell's start: midnight for day cells, slot start for time cells.
type Highlight []time.Time

// Clone copies h.
func (h Highlight) Clone() Highlight {
	if h == nil {
		return nil
	}
	out := make(Highlight, len(h))
	copy(out, h)
	return out
}

// Contains reports whether the cell starting at t is highlighted.
func (h Highlight) Contains(t time.Time) bool {
	for _, c := range h {
		if c.Equal(t) {
			return true
		}
	}
	return false
}

// HighlightDays returns one cell per calendar day from r.Start's date through
// r.End's date.
func HighlightDays(r cal.Range) Highlight {
	return Highlight(datemath.DaysInclusive(r.Start, r.End))
}

// HighlightSlots returns the slot cells r touches. A range shorter than a slot
// still highlights the slot it starts in.
func HighlightSlots(r cal.Range, slot time.Duration) Highlight {
	if slot <= 0 {
		return HighlightDays(r)
	}
	first := datemath.FloorToSlot(r.Start, slot)
	h := Highlight{first}
	for t := first.Add(slot); t.Before(r.End); t = t.Add(slot) {
		h = append(h, t)
	}
	return h
}
