package store

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/recurrence"
)

const productID = "-//skuld//EN"

// ImportICS merges the VEVENTs of an iCalendar stream into the store, keyed
// by UID. Events with an RRULE become series, RECURRENCE-ID overrides become
// modified exceptions. It returns the number of components imported.
func (s *Store) ImportICS(r io.Reader) (int, error) {
	calendar, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return 0, fmt.Errorf("decoding calendar: %w", err)
	}

	var overrides []ical.Event
	n := 0

	s.mu.Lock()
	for _, ve := range calendar.Events() {
		if ve.Props.Get(ical.PropRecurrenceID) != nil {
			overrides = append(overrides, ve)
			continue
		}
		ev, err := s.fromVEvent(ve)
		if err != nil {
			s.log.Warn("skipping vevent", "error", err)
			continue
		}

		rule := ve.Props.Get(ical.PropRecurrenceRule)
		if rule == nil {
			s.events[ev.ID] = ev
			n++
			continue
		}
		sr := Series{
			ID:      ev.ID,
			Title:   ev.Title,
			Start:   ev.Start,
			End:     ev.End,
			AllDay:  ev.AllDay,
			RRule:   rule.Value,
			ExDates: s.exDates(ve),
		}
		if _, err := parseRule(sr); err != nil {
			s.log.Warn("skipping series", "uid", ev.ID, "error", err)
			continue
		}
		s.series[sr.ID] = sr
		n++
	}

	for _, ve := range overrides {
		ev, err := s.fromVEvent(ve)
		if err != nil {
			s.log.Warn("skipping override", "error", err)
			continue
		}
		sr, ok := s.series[ev.ID]
		if !ok {
			s.log.Warn("override for unknown series", "uid", ev.ID)
			continue
		}
		rid, err := ve.Props.Get(ical.PropRecurrenceID).DateTime(s.loc)
		if err != nil {
			s.log.Warn("bad recurrence id", "uid", ev.ID, "error", err)
			continue
		}
		orig := datemath.StartOfDay(rid.In(sr.Start.Location()))
		ev.ID = OccurrenceID(sr.ID, orig)
		ev.SeriesID = sr.ID
		ev.OccurrenceDate = orig
		s.exceptions[recurrence.KeyFor(sr.ID, orig)] = recurrence.Modified(ev)
		n++
	}
	s.mu.Unlock()

	s.log.Info("calendar imported", "components", n)
	return n, s.persist()
}

// ExportICS writes the whole store as an iCalendar stream.
func (s *Store) ExportICS(w io.Writer) error {
	calendar := ical.NewCalendar()
	calendar.Props.SetText(ical.PropVersion, "2.0")
	calendar.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC()
	for _, ev := range s.Events() {
		calendar.Children = append(calendar.Children, toVEvent(ev, stamp))
	}

	s.mu.RLock()
	keys := make([]recurrence.Key, 0, len(s.exceptions))
	for key := range s.exceptions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	exceptions := make([]cal.Event, 0, len(keys))
	for _, key := range keys {
		sr, ok := s.series[key.SeriesID]
		if !ok {
			continue
		}
		if ev, ok := s.applyException(sr, key, s.exceptions[key]); ok {
			exceptions = append(exceptions, ev)
		}
	}
	s.mu.RUnlock()

	for _, sr := range s.AllSeries() {
		ve := toVEvent(sr.Master(), stamp)
		ve.Props.Set(&ical.Prop{Name: ical.PropRecurrenceRule, Params: make(ical.Params), Value: sr.RRule})
		for _, ex := range sr.ExDates {
			p := ical.NewProp(ical.PropExceptionDates)
			p.SetDate(ex)
			ve.Props.Add(p)
		}
		calendar.Children = append(calendar.Children, ve)
	}

	for _, ev := range exceptions {
		ve := toVEvent(ev, stamp)
		ve.Props.SetText(ical.PropUID, ev.SeriesID)
		rid := ical.NewProp(ical.PropRecurrenceID)
		rid.SetDate(ev.OccurrenceDate)
		ve.Props.Set(rid)
		calendar.Children = append(calendar.Children, ve)
	}

	if err := ical.NewEncoder(w).Encode(calendar); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// toVEvent converts ev. All-day events get DATE values with the exclusive
// DTEND iCalendar expects.
func toVEvent(ev cal.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.ID)
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	if ev.AllDay {
		ve.Props.SetDate(ical.PropDateTimeStart, ev.Start)
		ve.Props.SetDate(ical.PropDateTimeEnd, datemath.AddCalendarDays(ev.End, 1))
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
		ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
	}
	return ve
}

func (s *Store) fromVEvent(ve ical.Event) (cal.Event, error) {
	uid, err := ve.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return cal.Event{}, fmt.Errorf("%w: vevent without uid", ErrInvalidEvent)
	}
	title, _ := ve.Props.Text(ical.PropSummary)

	dtstart := ve.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil {
		return cal.Event{}, fmt.Errorf("%w: %s has no DTSTART", ErrInvalidEvent, uid)
	}
	allDay := dtstart.ValueType() == ical.ValueDate

	start, err := ve.DateTimeStart(s.loc)
	if err != nil {
		return cal.Event{}, fmt.Errorf("%w: %s: DTSTART: %v", ErrInvalidEvent, uid, err)
	}
	end, err := ve.DateTimeEnd(s.loc)
	if err != nil || end.IsZero() {
		end = start
		if allDay {
			end = datemath.AddCalendarDays(start, 1)
		}
	}
	if allDay {
		start = datemath.StartOfDay(start)
		end = datemath.AddCalendarDays(datemath.StartOfDay(end), -1)
		if end.Before(start) {
			end = start
		}
	}

	ev := cal.Event{ID: uid, Title: title, Start: start, End: end, AllDay: allDay}
	return ev, checkEvent(ev)
}

// exDates collects EXDATE values, which may be comma-separated lists.
func (s *Store) exDates(ve ical.Event) []time.Time {
	var out []time.Time
	for _, p := range ve.Props.Values(ical.PropExceptionDates) {
		for _, v := range strings.Split(p.Value, ",") {
			if t, ok := parseICSDate(strings.TrimSpace(v), s.loc); ok {
				out = append(out, datemath.StartOfDay(t))
			}
		}
	}
	return out
}

func parseICSDate(v string, loc *time.Location) (time.Time, bool) {
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t.In(loc), err == nil
	}
	for _, layout := range []string{"20060102T150405", "20060102"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
