// Package layout assigns temporally overlapping events to side-by-side
// columns.
package layout

import (
	"sort"
	"time"

	"github.com/cwarden/skuld/internal/cal"
)

// DefaultMinSpan is the lane height given to zero-length timed events.
const DefaultMinSpan = time.Minute

// Placement is an event annotated with its column inside its overlap group.
type Placement struct {
	Event   cal.Event
	Column  int // 0-based
	Columns int // columns opened by the event's overlap component
	Group   int // index of the overlap component, in start order
}

// Options controls how event spans are measured.
type Options struct {
	// DayGranularity measures every event in whole days with an inclusive
	// end date, as the month grid shows them.
	DayGranularity bool
	// MinSpan widens zero-length timed events. Zero means DefaultMinSpan.
	MinSpan time.Duration
}

type item struct {
	ev   cal.Event
	span cal.Range
	idx  int
}

// Assign lays out events and returns one Placement per input event, in the
// order events were given. The input slice is not modified.
//
// Events are sorted by start, longer first on ties, and each one takes the
// leftmost column whose members it does not overlap. A column set is closed
// when the next event starts after everything open has ended, so Columns is
// local to each maximal overlap component.
func Assign(events []cal.Event, opts Options) []Placement {
	if len(events) == 0 {
		return nil
	}

	items := make([]item, len(events))
	for i, ev := range events {
		items[i] = item{ev: ev, span: spanOf(ev, opts), idx: i}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].span, items[j].span
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Duration() != b.Duration() {
			return a.Duration() > b.Duration()
		}
		return items[i].ev.ID < items[j].ev.ID
	})

	out := make([]Placement, len(events))

	var (
		columns   [][]cal.Range
		members   []int // out indexes in the current component
		groupEnd  time.Time
		group     int
		haveGroup bool
	)

	closeGroup := func() {
		for _, idx := range members {
			out[idx].Columns = len(columns)
		}
		columns = nil
		members = nil
		group++
	}

	for _, it := range items {
		if haveGroup && !it.span.Start.Before(groupEnd) {
			closeGroup()
			haveGroup = false
		}

		col := -1
		for c, lane := range columns {
			if fits(lane, it.span) {
				col = c
				break
			}
		}
		if col < 0 {
			columns = append(columns, nil)
			col = len(columns) - 1
		}
		columns[col] = append(columns[col], it.span)

		out[it.idx] = Placement{Event: it.ev, Column: col, Group: group}
		members = append(members, it.idx)

		if !haveGroup || it.span.End.After(groupEnd) {
			groupEnd = it.span.End
		}
		haveGroup = true
	}
	closeGroup()

	return out
}

// Preview lays out events with proposed standing in for the event of the same
// ID (or added when no such event is present) and returns the proposed
// event's placement. events itself is left untouched.
func Preview(events []cal.Event, proposed cal.Event, opts Options) (Placement, bool) {
	candidates := make([]cal.Event, 0, len(events)+1)
	replaced := false
	for _, ev := range events {
		if ev.ID == proposed.ID && proposed.ID != "" {
			candidates = append(candidates, proposed)
			replaced = true
			continue
		}
		candidates = append(candidates, ev)
	}
	if !replaced {
		candidates = append(candidates, proposed)
	}

	for _, p := range Assign(candidates, opts) {
		if p.Event.ID == proposed.ID && p.Event.Start.Equal(proposed.Start) && p.Event.End.Equal(proposed.End) {
			return p, true
		}
	}
	return Placement{}, false
}

// Components groups placements by overlap component, preserving start order
// within each group.
func Components(placements []Placement) [][]Placement {
	byGroup := make(map[int][]Placement)
	maxGroup := -1
	for _, p := range placements {
		byGroup[p.Group] = append(byGroup[p.Group], p)
		if p.Group > maxGroup {
			maxGroup = p.Group
		}
	}

	groups := make([][]Placement, 0, len(byGroup))
	for g := 0; g <= maxGroup; g++ {
		ps, ok := byGroup[g]
		if !ok {
			continue
		}
		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].Event.Start.Before(ps[j].Event.Start)
		})
		groups = append(groups, ps)
	}
	return groups
}

func fits(lane []cal.Range, span cal.Range) bool {
	for _, existing := range lane {
		if !(!existing.Start.Before(span.End) || !existing.End.After(span.Start)) {
			return false
		}
	}
	return true
}

func spanOf(ev cal.Event, opts Options) cal.Range {
	if opts.DayGranularity || ev.AllDay {
		return cal.DaySpan(ev.Range())
	}
	r := ev.Range()
	if !r.End.After(r.Start) {
		min := opts.MinSpan
		if min <= 0 {
			min = DefaultMinSpan
		}
		r.End = r.Start.Add(min)
	}
	return r
}
