package ui

import (
	"fmt"
	"time"

	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/layout"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/truncate"
)

// monthLayout places every event of the page on the grid. Each day cell
// keeps its first line for the day number; events take one line each, in
// their layout column, and those that do not fit are counted per day.
func (m *Model) monthLayout() ([]block, map[string]int) {
	g := m.grid
	cellW, cellH := int(g.CellWidth), int(g.CellHeight)
	lines := cellH - 1

	var blocks []block
	hidden := make(map[string]int)
	for _, p := range layout.Assign(m.events, layout.Options{DayGranularity: true}) {
		ev := p.Event
		first, last := datemath.StartOfDay(ev.Start), lastDay(ev)
		for _, d := range eventDays(ev) {
			origin, ok := g.CellOrigin(d)
			if !ok {
				continue
			}
			if p.Column >= lines {
				hidden[dayKey(d)]++
				continue
			}
			blocks = append(blocks, block{
				ev:    ev,
				day:   d,
				x:     int(origin.X),
				y:     headerRows + int(origin.Y) + 1 + p.Column,
				w:     max(cellW-1, 1),
				h:     1,
				first: d.Equal(first),
				last:  d.Equal(last),
			})
		}
	}
	return blocks, hidden
}

func (m *Model) monthBlocks() []block {
	blocks, _ := m.monthLayout()
	return blocks
}

// monthLayers renders the month grid.
func (m *Model) monthLayers() []*lipgloss.Layer {
	g := m.grid
	cellW, cellH := int(g.CellWidth), int(g.CellHeight)
	w := max(cellW-1, 1)
	var layers []*lipgloss.Layer

	title := m.styles.Header.Render(m.monthOf.Format("January 2006"))
	layers = append(layers, lipgloss.NewLayer(title).X(0).Y(0).Z(0))
	for i := 0; i < 7; i++ {
		wd := time.Weekday((int(m.config.WeekStartDay) + i) % 7)
		name := truncate.String(wd.String(), uint(w))
		layers = append(layers, lipgloss.NewLayer(m.styles.Help.Render(name)).X(i*cellW).Y(1).Z(0))
	}

	blocks, hidden := m.monthLayout()
	proposal, hasProposal := m.machine.Proposal()
	today := datemath.StartOfDay(m.now())

	// Day cells
	for n := 0; n < g.Rows*7; n++ {
		d := datemath.AddCalendarDays(g.First, n)
		box := m.dayStyle(d)
		if hasProposal && proposal.Highlight.Contains(d) {
			box = m.proposalStyle(proposal.Valid)
		}

		number := fmt.Sprintf("%2d", d.Day())
		switch {
		case d.Equal(m.cursor):
			number = m.styles.Selected.Render(number)
		case d.Equal(today):
			number = m.styles.Today.Render(number)
		}
		if k := hidden[dayKey(d)]; k > 0 {
			number += fmt.Sprintf(" +%d", k)
		}

		cell := box.Width(w).Height(cellH).Render(number)
		layers = append(layers, lipgloss.NewLayer(cell).X((n%7)*cellW).Y(headerRows+(n/7)*cellH).Z(0))
	}

	// Event lines
	for _, b := range blocks {
		text := m.eventStyle(b.ev).Width(b.w).Render(m.label(b.ev, b.day, b.w))
		layers = append(layers, lipgloss.NewLayer(text).X(b.x).Y(b.y).Z(1))
	}

	// Proposed placement
	if hasProposal && cellH >= 2 {
		ev, _ := m.machine.Event()
		ghost := ev.WithRange(proposal.Range)
		line := 0
		if place, ok, err := m.monthCtl.Preview(); err != nil {
			m.log.Debug("preview failed", "error", err)
		} else if ok {
			line = min(place.Column, cellH-2)
		}
		style := m.proposalStyle(proposal.Valid)
		for _, d := range proposal.Highlight {
			origin, ok := g.CellOrigin(d)
			if !ok {
				continue
			}
			text := style.Width(w).Render(m.label(ghost, d, w))
			layers = append(layers, lipgloss.NewLayer(text).X(int(origin.X)).Y(headerRows+int(origin.Y)+1+line).Z(2))
		}
	}

	return layers
}

// dayStyle is the base style of a day cell.
func (m *Model) dayStyle(d time.Time) lipgloss.Style {
	switch {
	case m.isBlocked(d):
		return m.styles.Blocked
	case m.mode == ViewMonth && d.Month() != m.monthOf.Month():
		return m.styles.Help
	case isWeekend(d):
		return m.styles.Weekend
	default:
		return m.styles.Normal
	}
}

func (m *Model) proposalStyle(valid bool) lipgloss.Style {
	if valid {
		return m.styles.Proposal
	}
	return m.styles.Invalid
}

// isBlocked reports whether events may not be placed on d.
func (m *Model) isBlocked(d time.Time) bool {
	for _, wd := range m.config.BlockedWeekdays {
		if d.Weekday() == wd {
			return true
		}
	}
	if !m.config.MinDate.IsZero() && d.Before(m.config.MinDate) {
		return true
	}
	return !m.config.MaxDate.IsZero() && d.After(m.config.MaxDate)
}

func dayKey(d time.Time) string {
	return d.Format("2006-01-02")
}
