package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/interaction"

	tea "github.com/charmbracelet/bubbletea"
)

// block is the screen area showing one event on one day.
type block struct {
	ev    cal.Event
	day   time.Time
	x, y  int
	w, h  int
	first bool // holds the event's start edge
	last  bool // holds the event's end edge
}

func (b block) contains(x, y int) bool {
	return x >= b.x && x < b.x+b.w && y >= b.y && y < b.y+b.h
}

// handle reports which edge, if any, a press at x,y grabs. Month blocks have
// their handles on the outer columns, timeline blocks on the outer rows.
func (b block) handle(x, y int, mode ViewMode) (interaction.Edge, bool) {
	pos, lo, n := x, b.x, b.w
	if mode == ViewDay {
		pos, lo, n = y, b.y, b.h
	}
	switch {
	case n >= 3 && b.first && pos == lo:
		return interaction.EdgeStart, true
	case n >= 2 && b.last && pos == lo+n-1:
		return interaction.EdgeEnd, true
	}
	return interaction.EdgeStart, false
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}
	if m.editing {
		return m.handleEditorKeys(msg)
	}

	action := m.keys[key]
	if m.helpVisible {
		m.helpVisible = false
		return nil
	}
	if m.machine.Active() {
		return m.handleInteractionKeys(action)
	}

	switch action {
	case "quit":
		return tea.Quit

	case "help":
		m.helpVisible = true

	case "today":
		m.goTo(m.now())

	case "refresh":
		if err := m.store.Reload(); err != nil {
			m.setMessage(fmt.Sprintf("Reload failed: %v", err))
			return nil
		}
		m.loadEvents()
		m.setMessage("Refreshed")

	case "toggle_view":
		m.toggleView()

	case "add":
		m.editing = true
		m.input.Reset()
		return m.input.Focus()

	case "move", "resize_start", "resize_end":
		m.startKeyboard(action)

	case "next_event":
		m.selectNext(1)

	case "prev_event":
		m.selectNext(-1)

	case "left":
		m.moveCursor(-1)

	case "right":
		m.moveCursor(1)

	case "up":
		if m.mode == ViewDay {
			m.scroll(-1)
		} else {
			m.moveCursor(-7)
		}

	case "down":
		if m.mode == ViewDay {
			m.scroll(1)
		} else {
			m.moveCursor(7)
		}

	case "next_page", "prev_page":
		if !m.userPaging {
			return nil
		}
		if action == "next_page" {
			m.page(1)
		} else {
			m.page(-1)
		}
	}

	return nil
}

// handleInteractionKeys steers the active move or resize.
func (m *Model) handleInteractionKeys(action string) tea.Cmd {
	switch action {
	case "commit":
		m.finish(m.ctl().Commit())

	case "cancel":
		m.pressed = false
		m.ctl().Cancel()
		m.setMessage("Cancelled")

	case "quit":
		m.ctl().Cancel()
		return tea.Quit

	case "left", "right", "up", "down":
		if m.pressed {
			return nil
		}
		if err := m.ctl().Nudge(m.nudgeSteps(action)); err != nil {
			m.log.Debug("nudge ignored", "error", err)
		}
	}
	return nil
}

// nudgeSteps converts a direction key into controller steps: days on the
// month grid, slots on the timeline.
func (m *Model) nudgeSteps(action string) int {
	if m.mode == ViewDay {
		perDay := int(24 * time.Hour / m.config.Slot())
		switch action {
		case "left":
			return -perDay
		case "right":
			return perDay
		case "up":
			return -1
		default:
			return 1
		}
	}
	switch action {
	case "left":
		return -1
	case "right":
		return 1
	case "up":
		return -7
	default:
		return 7
	}
}

func (m *Model) startKeyboard(action string) {
	ev, ok := m.selectedEvent()
	if !ok {
		m.setMessage("No event selected")
		return
	}

	var err error
	switch action {
	case "move":
		err = m.ctl().StartKeyboardDrag(ev)
	case "resize_start":
		err = m.ctl().StartKeyboardResize(ev, interaction.EdgeStart)
	default:
		err = m.ctl().StartKeyboardResize(ev, interaction.EdgeEnd)
	}
	if err != nil {
		m.setMessage(fmt.Sprintf("Error: %v", err))
	}
}

// finish reports a commit and reloads the page.
func (m *Model) finish(out gesture.Outcome, err error) {
	switch {
	case err != nil:
		m.log.Error("commit failed", "error", err)
		m.setMessage(fmt.Sprintf("Error: %v", err))
	case !out.Committed:
		m.setMessage("Not moved")
	case out.Exception != nil:
		m.setMessage(fmt.Sprintf("Moved this occurrence of %q to %s", out.Event.Title, m.formatWhen(out.Event)))
	default:
		m.setMessage(fmt.Sprintf("Moved %q to %s", out.Event.Title, m.formatWhen(out.Event)))
	}
	m.loadEvents()
}

func (m *Model) moveCursor(days int) {
	d := datemath.AddCalendarDays(m.cursor, days)
	if m.mode == ViewMonth && d.Month() != m.monthOf.Month() && !m.userPaging {
		return
	}
	m.goTo(d)
}

// scroll moves the timeline by n slots.
func (m *Model) scroll(n int) {
	slot := m.config.Slot()
	start := m.dayStart + time.Duration(n)*slot
	last := 24*time.Hour - time.Duration(m.line.Rows)*slot
	start = max(min(start, last), 0)
	if start == m.dayStart {
		return
	}
	m.dayStart = start
	m.relayout()
}

// surfacePoint converts a terminal cell to surface coordinates, aiming at the
// cell's center.
func (m *Model) surfacePoint(x, y int) (gesture.Point, bool) {
	ox := 0
	if m.mode == ViewDay {
		ox = timeWidth
	}
	g := m.ctl().Geometry()
	w, h := g.Extent()
	p := gesture.Point{X: float64(x-ox) + 0.5, Y: float64(y-headerRows) + 0.5}
	inside := p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h
	return p, inside
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	pos, inside := m.surfacePoint(msg.X, msg.Y)
	pointer := gesture.Pointer{ID: mousePointer, Pos: pos}

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			if inside {
				m.press(msg.X, msg.Y, pointer)
			}
		case tea.MouseButtonWheelUp:
			m.wheel(-1)
		case tea.MouseButtonWheelDown:
			m.wheel(1)
		}

	case tea.MouseActionMotion:
		if !m.pressed {
			return
		}
		if !inside {
			m.ctl().PointerLeave(mousePointer)
			return
		}
		if err := m.ctl().PointerMove(pointer); err != nil {
			m.log.Debug("pointer move ignored", "error", err)
		}

	case tea.MouseActionRelease:
		if !m.pressed {
			return
		}
		m.pressed = false
		out, err := m.ctl().PointerUp(pointer)
		if errors.Is(err, interaction.ErrNoInteraction) {
			return
		}
		m.finish(out, err)
	}
}

func (m *Model) wheel(n int) {
	if !m.userPaging {
		return
	}
	if m.mode == ViewDay {
		m.scroll(n)
		return
	}
	m.page(n)
}

// press selects what is under the pointer and starts a drag or resize on an
// event.
func (m *Model) press(x, y int, p gesture.Pointer) {
	if m.machine.Active() {
		return
	}

	b, ok := m.blockAt(x, y)
	if !ok {
		if at, ok := m.ctl().Geometry().DateAt(p.Pos); ok {
			m.cursor = datemath.StartOfDay(at)
		}
		return
	}
	m.selected = b.ev.ID
	m.cursor = b.day

	var err error
	if edge, ok := b.handle(x, y, m.mode); ok {
		err = m.ctl().StartResize(b.ev, edge, p)
	} else {
		err = m.ctl().StartDrag(b.ev, p)
	}
	if err != nil {
		m.setMessage(fmt.Sprintf("Error: %v", err))
		return
	}
	m.pressed = true
}

func (m *Model) blockAt(x, y int) (block, bool) {
	blocks := m.monthBlocks()
	if m.mode == ViewDay {
		blocks = m.timelineBlocks()
	}
	// Later blocks are drawn on top.
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].contains(x, y) {
			return blocks[i], true
		}
	}
	return block{}, false
}

func (m *Model) handleEditorKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEscape:
		m.editing = false
		m.input.Blur()
		return nil

	case tea.KeyEnter:
		m.editing = false
		m.input.Blur()
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		m.parser.SetNow(m.now())
		ev, err := m.parser.ParseEvent(text)
		if err != nil {
			m.setMessage(fmt.Sprintf("Parse error: %v", err))
			return nil
		}
		added, err := m.store.Add(ev)
		if err != nil {
			m.setMessage(fmt.Sprintf("Error: %v", err))
			return nil
		}
		m.goTo(added.Start)
		m.selected = added.ID
		m.setMessage("Event added")
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}
