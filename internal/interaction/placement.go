package interaction

import (
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

// Delta is a displacement in calendar days plus a wall-clock offset. Days are
// applied with AddCalendarDays so DST never moves the time of day.
type Delta struct {
	Days   int
	Offset time.Duration
}

// Apply shifts t by d.
func (d Delta) Apply(t time.Time) time.Time {
	return datemath.AddCalendarDays(t, d.Days).Add(d.Offset)
}

// Reverse shifts t back by d.
func (d Delta) Reverse(t time.Time) time.Time {
	return datemath.AddCalendarDays(t.Add(-d.Offset), -d.Days)
}

// IsZero reports whether d moves nothing.
func (d Delta) IsZero() bool {
	return d.Days == 0 && d.Offset == 0
}

// Add combines two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{Days: d.Days + o.Days, Offset: d.Offset + o.Offset}
}

// MinDaySpan is the shortest an event may become under a date resize.
var MinDaySpan = Delta{Days: 1}

// MinSlotSpan is the shortest an event may become under a time resize.
func MinSlotSpan(slot time.Duration) Delta {
	return Delta{Offset: slot}
}

// Move shifts both ends of r by d, preserving its duration in calendar terms.
func Move(r cal.Range, d Delta) cal.Range {
	return cal.Range{Start: d.Apply(r.Start), End: d.Apply(r.End)}
}

// Resize moves one edge of r by d. The moved edge is clamped so the event
// keeps at least min: a start never passes End - min and an end never passes
// Start + min. The clamp never pushes an edge outward from where it began, so
// an event already shorter than min, such as a single all-day date, is left
// as it is. Once clamped, pushing further changes nothing.
func Resize(r cal.Range, edge Edge, d Delta, min Delta) cal.Range {
	switch edge {
	case EdgeStart:
		start := d.Apply(r.Start)
		limit := min.Reverse(r.End)
		if limit.Before(r.Start) {
			limit = r.Start
		}
		if start.After(limit) {
			start = limit
		}
		return cal.Range{Start: start, End: r.End}
	default:
		end := d.Apply(r.End)
		limit := min.Apply(r.Start)
		if limit.After(r.End) {
			limit = r.End
		}
		if end.Before(limit) {
			end = limit
		}
		return cal.Range{Start: r.Start, End: end}
	}
}
