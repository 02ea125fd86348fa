package store

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/recurrence"
)

// maxOccurrences caps one series' expansion within a single query.
const maxOccurrences = 5000

func parseRule(sr Series) (*rrule.Set, error) {
	r, err := rrule.StrToRRule(sr.RRule)
	if err != nil {
		return nil, fmt.Errorf("%w: series %s: rrule %q: %v", ErrInvalidEvent, sr.ID, sr.RRule, err)
	}
	r.DTStart(sr.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range sr.ExDates {
		// EXDATEs name dates; match them to the occurrence's time of day.
		set.ExDate(datemath.AtTimeOfDay(ex.In(sr.Start.Location()), datemath.TimeOfDay(sr.Start)))
	}
	return &set, nil
}

// occurrence builds the unmodified occurrence of sr starting at start.
func occurrence(sr Series, start time.Time) cal.Event {
	days := datemath.DayDistance(sr.Start, sr.End)
	offset := datemath.TimeOfDay(sr.End) - datemath.TimeOfDay(sr.Start)
	end := datemath.AddCalendarDays(start, days).Add(offset)

	ev := sr.Master().Clone()
	ev.ID = OccurrenceID(sr.ID, start)
	ev.Start = start
	ev.End = end
	ev.OccurrenceDate = datemath.StartOfDay(start)
	return ev
}

// expand returns the occurrences of sr overlapping r, with exceptions
// applied. The caller holds s.mu.
func (s *Store) expand(sr Series, r cal.Range) ([]cal.Event, error) {
	set, err := parseRule(sr)
	if err != nil {
		return nil, err
	}

	// An occurrence starting up to one span before r can still reach into it.
	span := cal.DaySpan(sr.Master().Range())
	lookback := datemath.DayDistance(span.Start, span.End) + 1
	from := datemath.AddCalendarDays(r.Start, -lookback)
	starts := set.Between(from.In(sr.Start.Location()), r.End.In(sr.Start.Location()), true)
	if len(starts) > maxOccurrences {
		s.log.Warn("series expansion truncated", "series", sr.ID, "cap", maxOccurrences)
		starts = starts[:maxOccurrences]
	}

	var out []cal.Event
	for _, start := range starts {
		key := recurrence.KeyFor(sr.ID, start)
		if _, ok := s.exceptions[key]; ok {
			continue
		}
		ev := occurrence(sr, start)
		if ev.Span().Overlaps(r) {
			out = append(out, ev)
		}
	}

	// Exceptions are checked on their own: a moved occurrence may land in r
	// although its original date is far outside it.
	for key, exc := range s.exceptions {
		if key.SeriesID != sr.ID {
			continue
		}
		ev, ok := s.applyException(sr, key, exc)
		if ok && ev.Span().Overlaps(r) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) applyException(sr Series, key recurrence.Key, exc recurrence.Exception) (cal.Event, bool) {
	orig, err := key.OriginalDate(sr.Start.Location())
	if err != nil {
		s.log.Warn("bad exception key", "key", key.String(), "error", err)
		return cal.Event{}, false
	}
	origStart := datemath.AtTimeOfDay(orig, datemath.TimeOfDay(sr.Start))
	ev := exc.Apply(sr.Master(), origStart)
	ev.ID = OccurrenceID(sr.ID, orig)
	ev.SeriesID = sr.ID
	ev.OccurrenceDate = orig
	return ev, true
}

// occurrenceOn returns the occurrence of sr originally on date d. The caller
// holds s.mu.
func (s *Store) occurrenceOn(sr Series, d time.Time) (cal.Event, bool) {
	key := recurrence.KeyFor(sr.ID, d)
	if exc, ok := s.exceptions[key]; ok {
		return s.applyException(sr, key, exc)
	}
	set, err := parseRule(sr)
	if err != nil {
		return cal.Event{}, false
	}
	day := datemath.StartOfDay(d)
	starts := set.Between(day, datemath.AddCalendarDays(day, 1), true)
	for _, start := range starts {
		if datemath.SameDay(start, d) {
			return occurrence(sr, start), true
		}
	}
	return cal.Event{}, false
}
