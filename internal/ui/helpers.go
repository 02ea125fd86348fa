package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/truncate"
)

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the first day of the week containing t.
func startOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return datemath.AddCalendarDays(datemath.StartOfDay(t), -offset)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// lastDay returns the last calendar day ev occupies. A timed event ending
// exactly at midnight does not reach into that day.
func lastDay(ev cal.Event) time.Time {
	end := ev.End
	if !ev.AllDay && end.After(ev.Start) && datemath.TimeOfDay(end) == 0 {
		end = end.Add(-time.Nanosecond)
	}
	if end.Before(ev.Start) {
		end = ev.Start
	}
	return datemath.StartOfDay(end)
}

// eventDays lists every calendar day ev occupies.
func eventDays(ev cal.Event) []time.Time {
	return datemath.DaysInclusive(ev.Start, lastDay(ev))
}

// eventBackground picks a block color from the event's length.
func (m *Model) eventBackground(ev cal.Event) lipgloss.ANSIColor {
	if ev.AllDay {
		return lipgloss.ANSIColor(24) // Blue for all-day entries
	}

	duration := ev.Duration().Hours()
	switch {
	case duration >= 4:
		return lipgloss.ANSIColor(52) // Dark purple for long events
	case duration >= 2:
		return lipgloss.ANSIColor(63) // Medium purple for medium events
	case duration >= 1:
		return lipgloss.ANSIColor(99) // Light purple for short events
	default:
		return lipgloss.ANSIColor(105) // Very light purple for brief events
	}
}

// eventStyle returns the block style for ev, marking the selected event and
// the original of an event being moved.
func (m *Model) eventStyle(ev cal.Event) lipgloss.Style {
	if moving, ok := m.machine.Event(); ok && moving.ID == ev.ID {
		return m.styles.Blocked
	}
	if ev.ID == m.selected {
		return m.styles.Selected
	}
	if ev.IsOccurrence() || ev.SeriesID != "" {
		return m.styles.Event
	}
	return m.styles.Event.Background(m.eventBackground(ev))
}

// formatWhen renders an event's dates for the status bar.
func (m *Model) formatWhen(ev cal.Event) string {
	if ev.AllDay {
		start := ev.Start.Format(m.config.DateFormat)
		if datemath.SameDay(ev.Start, ev.End) || ev.End.Before(ev.Start) {
			return start
		}
		return start + " – " + ev.End.Format(m.config.DateFormat)
	}
	start := ev.Start.Format(m.config.DateFormat + " " + m.config.TimeFormat)
	if datemath.SameDay(ev.Start, ev.End) {
		return start + "–" + ev.End.Format(m.config.TimeFormat)
	}
	return start + " – " + ev.End.Format(m.config.DateFormat+" "+m.config.TimeFormat)
}

// label renders an event title for a block w cells wide.
func (m *Model) label(ev cal.Event, day time.Time, w int) string {
	text := ev.Title
	if !ev.AllDay && datemath.SameDay(ev.Start, day) {
		text = fmt.Sprintf("%s %s", ev.Start.Format(m.config.TimeFormat), ev.Title)
	}
	if w <= 0 {
		return ""
	}
	return truncate.StringWithTail(text, uint(w), "…")
}

// visibleEvents returns the events on the page in display order.
func (m *Model) visibleEvents() []cal.Event {
	out := make([]cal.Event, len(m.events))
	copy(out, m.events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// selectedEvent returns the selected event if it is on the page.
func (m *Model) selectedEvent() (cal.Event, bool) {
	for _, ev := range m.events {
		if ev.ID == m.selected {
			return ev, true
		}
	}
	return cal.Event{}, false
}

// selectNext moves the selection by step through the page's events.
func (m *Model) selectNext(step int) {
	events := m.visibleEvents()
	if len(events) == 0 {
		m.selected = ""
		return
	}
	idx := -1
	for i, ev := range events {
		if ev.ID == m.selected {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && step < 0:
		idx = len(events) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + step + len(events)) % len(events)
	}
	m.selected = events[idx].ID
	m.cursor = datemath.StartOfDay(events[idx].Start)
}
