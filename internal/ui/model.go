package ui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/clock"
	"github.com/cwarden/skuld/internal/config"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/edgenav"
	"github.com/cwarden/skuld/internal/gesture"
	"github.com/cwarden/skuld/internal/interaction"
	"github.com/cwarden/skuld/internal/parser"
	"github.com/cwarden/skuld/internal/store"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss/v2"
)

type ViewMode int

const (
	ViewMonth ViewMode = iota
	ViewDay
)

// mousePointer is the pointer ID of the terminal mouse.
const mousePointer = 1

const (
	headerRows  = 2
	statusRows  = 2
	timeWidth   = 6
	minDayWidth = 18
	maxDays     = 7
)

const messageTimeout = 3 * time.Second

type (
	tickMsg           time.Time
	timerMsg          uint64
	renderedMsg       struct{}
	storeChangedMsg   struct{ err error }
	messageTimeoutMsg int
)

type Model struct {
	// Core components
	config  *config.Config
	store   *store.Store
	parser  *parser.Parser
	log     *slog.Logger
	sched   clock.Scheduler
	posted  *clock.Posted
	watcher *store.Watcher
	timers  chan uint64
	changes chan error
	now     func() time.Time

	// Interaction engine
	machine  *interaction.Machine
	monthCtl *gesture.Controller
	dayCtl   *gesture.Controller

	// View state
	mode     ViewMode
	monthOf  time.Time     // first day of the month on screen
	dayFirst time.Time     // leftmost timeline column
	dayStart time.Duration // time of day of the top timeline row
	cursor   time.Time
	selected string // ID of the selected event
	events   []cal.Event
	grid     *gesture.Grid
	line     *gesture.Timeline

	// Host state
	userPaging bool
	postRender []func()
	pressed    bool // mouse button held on an interaction

	// UI state
	width       int
	height      int
	helpVisible bool
	editing     bool
	input       textinput.Model
	status      string
	message     string
	messageSeq  int
	cmds        []tea.Cmd
	keys        map[string]string // key -> action

	styles Styles
}

type Styles struct {
	Normal   lipgloss.Style
	Selected lipgloss.Style
	Today    lipgloss.Style
	Weekend  lipgloss.Style
	Header   lipgloss.Style
	Event    lipgloss.Style
	Proposal lipgloss.Style
	Invalid  lipgloss.Style
	Blocked  lipgloss.Style
	Help     lipgloss.Style
	Message  lipgloss.Style
	Border   lipgloss.Style
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the model's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithScheduler replaces the timer source. Without it timers are delivered
// through the program's message loop.
func WithScheduler(s clock.Scheduler) Option {
	return func(m *Model) {
		m.sched = s
	}
}

// WithClock fixes the model's notion of now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

func NewModel(cfg *config.Config, st *store.Store, opts ...Option) *Model {
	m := &Model{
		config:     cfg,
		store:      st,
		log:        slog.New(slog.DiscardHandler),
		now:        time.Now,
		timers:     make(chan uint64, 16),
		changes:    make(chan error, 1),
		userPaging: true,
		keys:       make(map[string]string),
		styles:     DefaultStyles(cfg.Colors),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sched == nil {
		m.posted = clock.NewPosted(func(id uint64) { m.timers <- id })
		m.sched = m.posted
	}
	m.input = textinput.New()
	m.input.Placeholder = "tomorrow 2pm-3pm dentist"
	m.input.CharLimit = 200
	for action, key := range cfg.KeyBindings {
		m.keys[key] = action
	}

	now := m.now()
	m.parser = parser.New(now.Location())
	m.parser.SetNow(now)

	today := datemath.StartOfDay(now)
	m.cursor = today
	m.monthOf = firstOfMonth(today)
	m.dayFirst = today
	m.dayStart = 8*time.Hour - 8*time.Hour%cfg.Slot()
	if cfg.StartupView == "day" {
		m.mode = ViewDay
	}

	m.grid = m.buildGrid()
	m.line = m.buildTimeline()
	m.machine = interaction.New(interaction.WithLogger(m.log))
	m.machine.Subscribe(m.onInteractionChange)
	m.monthCtl = gesture.New(m.machine, m.sched, m.grid, m, st, cfg.EngineOptions(gesture.Days, m.log))
	m.dayCtl = gesture.New(m.machine, m.sched, m.line, m, st, cfg.EngineOptions(gesture.Slots, m.log))

	m.loadEvents()
	return m
}

func DefaultStyles(colors map[string]string) Styles {
	color := func(name, fallback string) string {
		if c, ok := colors[name]; ok && c != "" {
			return c
		}
		return fallback
	}

	return Styles{
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(color("normal", "252"))),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color(color("selected", "220"))).
			Bold(true),
		Today: lipgloss.NewStyle().
			Foreground(lipgloss.Color(color("today", "220"))).
			Bold(true),
		Weekend: lipgloss.NewStyle().
			Foreground(lipgloss.Color(color("weekend", "39"))),
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(color("header", "220"))).
			Bold(true).
			Underline(true),
		Event: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color(color("event", "40"))),
		Proposal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color(color("proposal", "48"))).
			Bold(true),
		Invalid: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color(color("invalid", "196"))).
			Strikethrough(true),
		Blocked: lipgloss.NewStyle().
			Foreground(lipgloss.Color(color("blocked", "241"))).
			Faint(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Message: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")),
	}
}

// Watch reloads the events file whenever it changes on disk. Close stops it.
func (m *Model) Watch() error {
	if m.store.Path() == "" || m.watcher != nil {
		return nil
	}
	w, err := store.Watch(m.store, func(err error) {
		select {
		case m.changes <- err:
		default:
		}
	}, m.log)
	if err != nil {
		return err
	}
	m.watcher = w
	return nil
}

// Close releases the file watcher.
func (m *Model) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.waitForTimer(),
		m.waitForChange(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.relayout()

	case tea.KeyMsg:
		m.queue(m.handleKeyPress(msg))

	case tea.MouseMsg:
		m.handleMouse(msg)

	case timerMsg:
		if m.posted != nil {
			m.posted.Run(uint64(msg))
		}
		m.queue(m.waitForTimer())

	case renderedMsg:
		fns := m.postRender
		m.postRender = nil
		for _, fn := range fns {
			fn()
		}

	case storeChangedMsg:
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Reload failed: %v", msg.err))
		} else {
			m.loadEvents()
		}
		m.queue(m.waitForChange())

	case tickMsg:
		// Keeps the today marker current.
		m.queue(m.tickCmd())

	case messageTimeoutMsg:
		if int(msg) == m.messageSeq {
			m.message = ""
		}
	}

	if len(m.postRender) > 0 {
		m.queue(func() tea.Msg { return renderedMsg{} })
	}
	cmds := m.cmds
	m.cmds = nil
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.helpVisible {
		return m.viewHelp()
	}
	if m.editing {
		return m.viewEventEditor()
	}

	var layers []*lipgloss.Layer
	if m.mode == ViewDay {
		layers = m.timelineLayers()
	} else {
		layers = m.monthLayers()
	}
	layers = append(layers, m.statusBarLayers()...)

	canvas := lipgloss.NewCanvas(layers...)
	return canvas.Render()
}

// Navigate turns the page. It implements edgenav.Host.
func (m *Model) Navigate(dir edgenav.Direction) bool {
	switch dir {
	case edgenav.Forward:
		m.page(1)
	case edgenav.Backward:
		m.page(-1)
	default:
		return false
	}
	return true
}

// PageRange returns the half-open date range on screen.
func (m *Model) PageRange() cal.Range {
	if m.mode == ViewDay {
		return cal.Range{Start: m.line.First, End: datemath.AddCalendarDays(m.line.First, m.line.Days)}
	}
	return cal.Range{Start: m.grid.First, End: datemath.AddCalendarDays(m.grid.First, m.grid.Rows*7)}
}

// AfterNextRender runs fn once the next frame has been drawn.
func (m *Model) AfterNextRender(fn func()) {
	m.postRender = append(m.postRender, fn)
}

// SetUserPaging enables or suppresses paging with keys and the mouse wheel.
func (m *Model) SetUserPaging(enabled bool) {
	m.userPaging = enabled
}

// ctl returns the controller of the surface on screen.
func (m *Model) ctl() *gesture.Controller {
	if m.mode == ViewDay {
		return m.dayCtl
	}
	return m.monthCtl
}

func (m *Model) page(step int) {
	if m.mode == ViewDay {
		n := step * m.line.Days
		m.dayFirst = datemath.AddCalendarDays(m.dayFirst, n)
		m.cursor = datemath.AddCalendarDays(m.cursor, n)
	} else {
		m.monthOf = m.monthOf.AddDate(0, step, 0)
		m.cursor = m.monthOf
	}
	m.relayout()
}

// goTo shows the page containing d and puts the cursor on it.
func (m *Model) goTo(d time.Time) {
	d = datemath.StartOfDay(d)
	m.cursor = d
	m.monthOf = firstOfMonth(d)
	if n := datemath.DayDistance(m.dayFirst, d); n < 0 || n >= m.line.Days {
		m.dayFirst = d
	}
	m.relayout()
}

func (m *Model) toggleView() {
	if m.machine.Active() {
		m.setMessage("Finish the current move first")
		return
	}
	if m.mode == ViewDay {
		m.mode = ViewMonth
		m.monthOf = firstOfMonth(m.cursor)
	} else {
		m.mode = ViewDay
		m.dayFirst = m.cursor
	}
	m.relayout()
}

// relayout rebuilds both surfaces for the current size and pages.
func (m *Model) relayout() {
	m.grid = m.buildGrid()
	m.line = m.buildTimeline()
	m.monthCtl.SetGeometry(m.grid)
	m.dayCtl.SetGeometry(m.line)
	m.input.Width = max(m.width-4, 20)
	m.loadEvents()
}

func (m *Model) buildGrid() *gesture.Grid {
	first := startOfWeek(m.monthOf, m.config.WeekStartDay)
	last := datemath.AddCalendarDays(m.monthOf.AddDate(0, 1, 0), -1)
	rows := datemath.DayDistance(first, last)/7 + 1

	return &gesture.Grid{
		First:      first,
		Rows:       rows,
		CellWidth:  float64(max(m.width/7, 1)),
		CellHeight: float64(max((m.height-headerRows-statusRows)/rows, 1)),
	}
}

func (m *Model) dayColumns() int {
	return min(max((m.width-timeWidth)/minDayWidth, 1), maxDays)
}

func (m *Model) buildTimeline() *gesture.Timeline {
	slot := m.config.Slot()
	days := m.dayColumns()
	remaining := int((24*time.Hour - m.dayStart) / slot)
	rows := min(max(m.height-headerRows-statusRows, 1), max(remaining, 1))

	return &gesture.Timeline{
		First:      m.dayFirst,
		Days:       days,
		Slot:       slot,
		DayStart:   m.dayStart,
		Rows:       rows,
		DayWidth:   float64(max((m.width-timeWidth)/days, 1)),
		SlotHeight: 1,
	}
}

func (m *Model) loadEvents() {
	events, err := m.store.QueryEventsOverlapping(m.PageRange())
	if err != nil {
		m.log.Error("loading events", "error", err)
		m.setMessage(fmt.Sprintf("Error loading events: %v", err))
		return
	}
	m.events = events
}

// onInteractionChange keeps the status line in step with the machine.
func (m *Model) onInteractionChange() {
	ev, active := m.machine.Event()
	if !active {
		m.status = ""
		return
	}
	p, ok := m.machine.Proposal()
	switch {
	case !ok:
		m.status = fmt.Sprintf("%s: release over the calendar to place it", ev.Title)
	case p.Valid:
		m.status = fmt.Sprintf("%s → %s", ev.Title, m.formatWhen(ev.WithRange(p.Range)))
	default:
		m.status = fmt.Sprintf("%s → %s (%s)", ev.Title, m.formatWhen(ev.WithRange(p.Range)), m.ctl().Verdict().Reason)
	}
}

func (m *Model) setMessage(msg string) {
	m.messageSeq++
	seq := m.messageSeq
	m.message = msg
	m.queue(tea.Tick(messageTimeout, func(time.Time) tea.Msg {
		return messageTimeoutMsg(seq)
	}))
}

func (m *Model) queue(cmd tea.Cmd) {
	if cmd != nil {
		m.cmds = append(m.cmds, cmd)
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForTimer delivers the next expired interaction timer as a message.
func (m *Model) waitForTimer() tea.Cmd {
	if m.posted == nil {
		return nil
	}
	return func() tea.Msg {
		return timerMsg(<-m.timers)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		return storeChangedMsg{err: <-m.changes}
	}
}
