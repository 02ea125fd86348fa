package ui

import (
	"fmt"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/layout"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// slotIndex returns the slot holding offset d, rounding toward negative
// infinity.
func slotIndex(d, slot time.Duration) int {
	i := int(d / slot)
	if d < 0 && d%slot != 0 {
		i--
	}
	return i
}

// rowsOn returns the first and last timeline rows ev covers on day, and
// whether its start and end edges fall on screen.
func (m *Model) rowsOn(ev cal.Event, day time.Time) (top, bottom int, startShown, endShown, ok bool) {
	t := m.line
	next := datemath.AddCalendarDays(day, 1)

	startTod, endTod := time.Duration(0), 24*time.Hour
	if ev.Start.After(day) {
		startTod = datemath.TimeOfDay(ev.Start)
	}
	if ev.End.Before(next) {
		endTod = datemath.TimeOfDay(ev.End)
	}

	top = slotIndex(startTod-t.DayStart, t.Slot)
	bottom = top
	if endTod > startTod {
		bottom = slotIndex(endTod-t.DayStart-1, t.Slot)
	}
	if bottom < 0 || top >= t.Rows {
		return 0, 0, false, false, false
	}

	startShown = top >= 0 && !ev.Start.Before(day)
	endShown = bottom < t.Rows && ev.End.Before(next)
	return max(top, 0), min(bottom, t.Rows-1), startShown, endShown, true
}

// timelineBlocks places the page's timed events, each day column laid out
// on its own.
func (m *Model) timelineBlocks() []block {
	t := m.line
	dayW := int(t.DayWidth)

	var blocks []block
	for col := 0; col < t.Days; col++ {
		day := datemath.AddCalendarDays(t.First, col)
		span := cal.Range{Start: day, End: datemath.AddCalendarDays(day, 1)}

		var timed []cal.Event
		for _, ev := range m.events {
			if !ev.AllDay && ev.Span().Overlaps(span) {
				timed = append(timed, ev)
			}
		}

		for _, p := range layout.Assign(timed, layout.Options{}) {
			top, bottom, startShown, endShown, ok := m.rowsOn(p.Event, day)
			if !ok {
				continue
			}
			subW := max(dayW/max(p.Columns, 1), 1)
			blocks = append(blocks, block{
				ev:    p.Event,
				day:   day,
				x:     timeWidth + col*dayW + p.Column*subW,
				y:     headerRows + top,
				w:     max(subW-1, 1),
				h:     bottom - top + 1,
				first: startShown,
				last:  endShown,
			})
		}
	}
	return blocks
}

// allDayCount counts the all-day events on d.
func (m *Model) allDayCount(d time.Time) int {
	n := 0
	for _, ev := range m.events {
		if ev.AllDay && ev.Span().Contains(d) {
			n++
		}
	}
	return n
}

// timelineLayers renders the day columns.
func (m *Model) timelineLayers() []*lipgloss.Layer {
	t := m.line
	dayW := int(t.DayWidth)
	w := max(dayW-1, 1)
	now := m.now()
	today := datemath.StartOfDay(now)
	var layers []*lipgloss.Layer

	last := datemath.AddCalendarDays(t.First, t.Days-1)
	title := t.First.Format("Mon Jan 2")
	if t.Days > 1 {
		title += " – " + last.Format("Mon Jan 2")
	}
	title += t.First.Format(", 2006")
	layers = append(layers, lipgloss.NewLayer(m.styles.Header.Render(title)).X(0).Y(0).Z(0))

	// Day headers
	for col := 0; col < t.Days; col++ {
		day := datemath.AddCalendarDays(t.First, col)
		label := day.Format("Mon 02")
		if n := m.allDayCount(day); n > 0 {
			label += fmt.Sprintf(" ·%d", n)
		}

		style := m.dayStyle(day)
		switch {
		case day.Equal(m.cursor):
			style = m.styles.Selected
		case day.Equal(today):
			style = m.styles.Today
		}
		text := style.Render(truncate.String(label, uint(w)))
		layers = append(layers, lipgloss.NewLayer(text).X(timeWidth+col*dayW).Y(1).Z(0))
	}

	// Time column
	showsToday := !today.Before(t.First) && today.Before(datemath.AddCalendarDays(t.First, t.Days))
	for r := 0; r < t.Rows; r++ {
		tod := t.DayStart + time.Duration(r)*t.Slot
		label := fmt.Sprintf("%02d:%02d", int(tod.Hours()), int(tod.Minutes())%60)

		style := m.styles.Normal
		if showsToday {
			if n := datemath.TimeOfDay(now); n >= tod && n < tod+t.Slot {
				style = m.styles.Today
			}
		}
		layers = append(layers, lipgloss.NewLayer(style.Render(label)).X(0).Y(headerRows+r).Z(0))
	}

	// Event blocks
	for _, b := range m.timelineBlocks() {
		text := m.label(b.ev, b.day, 1<<16)
		wrapped := wordwrap.String(text, b.w)
		box := m.eventStyle(b.ev).Width(b.w).MaxWidth(b.w).Height(b.h).MaxHeight(b.h)
		layers = append(layers, lipgloss.NewLayer(box.Render(wrapped)).X(b.x).Y(b.y).Z(1))
	}

	layers = append(layers, m.timelineProposalLayers()...)
	return layers
}

// timelineProposalLayers draws the proposed slots in the column the preview
// layout gives the event.
func (m *Model) timelineProposalLayers() []*lipgloss.Layer {
	proposal, ok := m.machine.Proposal()
	if !ok {
		return nil
	}
	t := m.line
	dayW := int(t.DayWidth)
	ev, _ := m.machine.Event()
	ghost := ev.WithRange(proposal.Range)

	column, columns := 0, 1
	if place, ok, err := m.dayCtl.Preview(); err != nil {
		m.log.Debug("preview failed", "error", err)
	} else if ok {
		column, columns = place.Column, max(place.Columns, 1)
	}
	subW := max(dayW/columns, 1)
	w := max(subW-1, 1)
	style := m.proposalStyle(proposal.Valid)

	var layers []*lipgloss.Layer
	labelled := make(map[int]bool)
	for _, cell := range proposal.Highlight {
		col := datemath.DayDistance(t.First, cell)
		row := slotIndex(datemath.TimeOfDay(cell)-t.DayStart, t.Slot)
		if col < 0 || col >= t.Days || row < 0 || row >= t.Rows {
			continue
		}
		text := ""
		if !labelled[col] {
			text = m.label(ghost, cell, w)
			labelled[col] = true
		}
		layer := lipgloss.NewLayer(style.Width(w).Render(text)).
			X(timeWidth + col*dayW + column*subW).
			Y(headerRows + row).
			Z(2)
		layers = append(layers, layer)
	}
	return layers
}
