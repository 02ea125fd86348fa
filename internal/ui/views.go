package ui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

var actionHelp = map[string]string{
	"quit":         "Quit",
	"help":         "Toggle help",
	"today":        "Go to today",
	"refresh":      "Reload the events file",
	"toggle_view":  "Switch between month and day view",
	"add":          "New event",
	"move":         "Move the selected event",
	"resize_start": "Move the selected event's start",
	"resize_end":   "Move the selected event's end",
	"commit":       "Save the move",
	"cancel":       "Abandon the move",
	"next_event":   "Select next event",
	"prev_event":   "Select previous event",
	"left":         "Previous day / earlier",
	"right":        "Next day / later",
	"up":           "Previous week / scroll up",
	"down":         "Next week / scroll down",
	"next_page":    "Next page",
	"prev_page":    "Previous page",
}

func (m *Model) viewHelp() string {
	actions := make([]string, 0, len(m.config.KeyBindings))
	for action := range m.config.KeyBindings {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	help := []string{
		m.styles.Header.Render("Skuld Help"),
		"",
		m.styles.Normal.Render("Keys:"),
	}
	for _, action := range actions {
		desc, ok := actionHelp[action]
		if !ok {
			desc = action
		}
		help = append(help, m.styles.Help.Render(fmt.Sprintf("  %-10s - %s", m.config.KeyBindings[action], desc)))
	}

	mouse := "Drag an event to move it. Grab its first or last cell to resize it. " +
		"Hold it at the edge of the calendar to turn the page."
	help = append(help,
		"",
		m.styles.Normal.Render("Mouse:"),
		m.styles.Help.Render(wordwrap.String(mouse, max(m.width-2, 20))),
		"",
		m.styles.Help.Render("Press any key to return..."),
	)

	return lipgloss.JoinVertical(lipgloss.Left, help...)
}

func (m *Model) viewEventEditor() string {
	var sections []string

	header := m.styles.Header.Render("New Event")
	sections = append(sections, header)
	sections = append(sections, "")

	prompt := m.styles.Normal.Render("Enter event (e.g., 'tomorrow 2pm-3pm dentist'):")
	sections = append(sections, prompt)

	sections = append(sections, m.input.View())
	sections = append(sections, "")

	help := m.styles.Help.Render("Enter to save, Esc to cancel")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// statusBarLayers renders the two bottom lines: the interaction or selection
// on the first, messages or a key hint on the second.
func (m *Model) statusBarLayers() []*lipgloss.Layer {
	width := uint(max(m.width, 1))
	var layers []*lipgloss.Layer

	var status string
	switch {
	case m.status != "":
		style := m.styles.Proposal
		if p, ok := m.machine.Proposal(); ok && !p.Valid {
			style = m.styles.Invalid
		}
		status = style.Render(truncate.String(m.status, width))
	default:
		if ev, ok := m.selectedEvent(); ok {
			status = m.styles.Normal.Render(truncate.String(fmt.Sprintf("%s · %s", ev.Title, m.formatWhen(ev)), width))
		}
	}
	if status != "" {
		layers = append(layers, lipgloss.NewLayer(status).X(0).Y(m.height-2).Z(3))
	}

	line := m.styles.Help.Render(truncate.String("? help  tab select  m move  s/e resize  v view  n new  q quit", width))
	if m.message != "" {
		line = m.styles.Message.Render(truncate.String(m.message, width))
	}
	layers = append(layers, lipgloss.NewLayer(line).X(0).Y(m.height-1).Z(3))

	return layers
}
