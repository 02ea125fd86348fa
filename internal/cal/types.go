// Package cal holds the value types shared by the interaction engine and its
// collaborators.
package cal

import (
	"fmt"
	"time"

	"github.com/cwarden/skuld/internal/datemath"
)

// Event is one calendar entry. When SeriesID is set and OccurrenceDate is
// non-zero the event is a single occurrence of a recurring series.
type Event struct {
	ID             string
	Title          string
	Start          time.Time
	End            time.Time
	AllDay         bool
	SeriesID       string
	OccurrenceDate time.Time
	Attrs          map[string]string
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	out := e
	if e.Attrs != nil {
		out.Attrs = make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// IsOccurrence reports whether e stands for one date of a recurring series.
func (e Event) IsOccurrence() bool {
	return e.SeriesID != "" && !e.OccurrenceDate.IsZero()
}

// Range returns the event's start and end as stored.
func (e Event) Range() Range {
	return Range{Start: e.Start, End: e.End}
}

// WithRange returns a copy of e placed at r.
func (e Event) WithRange(r Range) Event {
	out := e.Clone()
	out.Start = r.Start
	out.End = r.End
	return out
}

// Span returns the half-open interval the event occupies. All-day events
// cover whole days, so their end date is inclusive.
func (e Event) Span() Range {
	if e.AllDay {
		return DaySpan(e.Range())
	}
	return e.Range()
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func (e Event) String() string {
	if e.AllDay {
		return fmt.Sprintf("%s [%s..%s]", e.Title, e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s [%s..%s]", e.Title, e.Start.Format("2006-01-02 15:04"), e.End.Format("2006-01-02 15:04"))
}

// Range is a start/end pair. Unless stated otherwise it is half-open.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether both bounds are unset.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Equal compares both bounds as instants.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// Contains reports whether t falls in [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether the two half-open ranges intersect. An empty range
// behaves as a single instant.
func (r Range) Overlaps(o Range) bool {
	if !r.End.After(r.Start) {
		return o.Contains(r.Start) || (o.Start.Equal(r.Start) && !o.End.After(o.Start))
	}
	if !o.End.After(o.Start) {
		return r.Contains(o.Start)
	}
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// DaySpan widens r to whole days, treating r.End's date as included.
func DaySpan(r Range) Range {
	start := datemath.StartOfDay(r.Start)
	end := datemath.AddCalendarDays(datemath.StartOfDay(r.End), 1)
	if end.Before(start) {
		end = datemath.AddCalendarDays(start, 1)
	}
	return Range{Start: start, End: end}
}
