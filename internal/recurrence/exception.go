// Package recurrence decides which exception record an edited occurrence of a
// recurring series turns into.
package recurrence

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

// DateLayout is the key format for original occurrence dates.
const DateLayout = "2006-01-02"

var ErrNotOccurrence = errors.New("event is not an occurrence of a recurring series")

// Kind distinguishes the two exception shapes.
type Kind int

const (
	// KindRescheduled only moves the occurrence to a new date. Everything
	// else, duration included, comes from the series master.
	KindRescheduled Kind = iota
	// KindModified overrides the occurrence with a complete event snapshot.
	KindModified
)

func (k Kind) String() string {
	switch k {
	case KindRescheduled:
		return "rescheduled"
	case KindModified:
		return "modified"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Key identifies one occurrence of a series by its original date.
type Key struct {
	SeriesID string
	Date     string // DateLayout
}

// KeyFor builds the key of occurrence date d in series seriesID.
func KeyFor(seriesID string, d time.Time) Key {
	return Key{SeriesID: seriesID, Date: d.Format(DateLayout)}
}

// OriginalDate parses the key's date in loc.
func (k Key) OriginalDate(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout, k.Date, loc)
}

func (k Key) String() string {
	return k.SeriesID + "@" + k.Date
}

// Exception overrides one occurrence. A newer exception for the same Key
// replaces an older one entirely.
type Exception struct {
	Kind    Kind
	NewDate time.Time // KindRescheduled
	Event   cal.Event // KindModified
}

// Rescheduled returns an exception moving the occurrence to newDate.
func Rescheduled(newDate time.Time) Exception {
	return Exception{Kind: KindRescheduled, NewDate: newDate}
}

// Modified returns an exception carrying a full snapshot of ev.
func Modified(ev cal.Event) Exception {
	return Exception{Kind: KindModified, Event: ev.Clone()}
}

// Apply produces the concrete occurrence this exception yields for master at
// occurrenceStart.
func (e Exception) Apply(master cal.Event, occurrenceStart time.Time) cal.Event {
	switch e.Kind {
	case KindModified:
		return e.Event.Clone()
	default:
		out := master.Clone()
		out.OccurrenceDate = datemath.StartOfDay(occurrenceStart)
		shift := datemath.DayDistance(occurrenceStart, e.NewDate)
		out.Start = datemath.AddCalendarDays(occurrenceStart, shift)
		out.End = datemath.AddCalendarDays(occurrenceStart.Add(master.Duration()), shift)
		return out
	}
}

// Overlaps reports whether a Modified exception's event intersects r. It needs
// nothing but the exception itself, so stores can answer range queries for
// occurrences whose original date lies outside the range.
func (e Exception) Overlaps(r cal.Range) bool {
	if e.Kind != KindModified {
		return false
	}
	return e.Event.Span().Overlaps(r)
}

// Writer persists exceptions.
type Writer interface {
	WriteRecurrenceException(key Key, exc Exception) error
}

// Resolver turns committed occurrence edits into exceptions.
type Resolver struct {
	w   Writer
	log *slog.Logger
}

// NewResolver returns a Resolver writing through w. A nil logger discards.
func NewResolver(w Writer, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{w: w, log: log}
}

// Resolve returns the exception to write for updated, which must already
// carry the committed start and end. The result is always a Modified
// snapshot: a Rescheduled record would re-derive duration from the master and
// lose any earlier resize of this occurrence.
func Resolve(updated cal.Event) (Key, Exception, bool) {
	if !updated.IsOccurrence() {
		return Key{}, Exception{}, false
	}
	return KeyFor(updated.SeriesID, updated.OccurrenceDate), Modified(updated), true
}

// Commit resolves updated and writes the exception.
func (r *Resolver) Commit(updated cal.Event) (Key, error) {
	key, exc, ok := Resolve(updated)
	if !ok {
		return Key{}, ErrNotOccurrence
	}
	if err := r.w.WriteRecurrenceException(key, exc); err != nil {
		return key, fmt.Errorf("writing exception %s: %w", key, err)
	}
	r.log.Debug("recurrence exception written", "key", key.String(), "kind", exc.Kind.String(),
		"start", updated.Start, "end", updated.End)
	return key, nil
}
