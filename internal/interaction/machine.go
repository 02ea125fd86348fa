// Package interaction owns the single in-progress move or resize of a
// calendar event and notifies subscribers on every change.
package interaction

import (
	"errors"
	"log/slog"
	"time"

	"github.com/cwarden/skuld/internal/cal"
)

var (
	ErrInteractionActive = errors.New("an interaction is already active")
	ErrNoInteraction     = errors.New("no interaction is active")
	ErrNotDragging       = errors.New("active interaction is not a drag")
	ErrNotResizing       = errors.New("active interaction is not a resize")
)

// Edge names the side of an event being resized.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeStart {
		return "start"
	}
	return "end"
}

// Interaction is the machine's state: Idle, Dragging or Resizing. The
// variants are the only implementations, so a drag and a resize can never be
// active together.
type Interaction interface {
	interaction()
}

// Idle means no interaction is active.
type Idle struct{}

// Dragging moves Event. Event is a snapshot taken at start; the caller's
// event is only changed by a commit.
type Dragging struct {
	Event    cal.Event
	Original cal.Range
	Origin   time.Time // calendar position the drag started from
}

// Resizing moves one edge of Event.
type Resizing struct {
	Event    cal.Event
	Original cal.Range
	Edge     Edge
}

func (Idle) interaction()     {}
func (Dragging) interaction() {}
func (Resizing) interaction() {}

// Proposal is the tentative placement of the active interaction.
type Proposal struct {
	Range     cal.Range
	Valid     bool
	Highlight Highlight
}

// Machine tracks at most one interaction. It is not safe for concurrent use;
// all calls belong on the surface's event goroutine.
type Machine struct {
	state    Interaction
	proposal *Proposal

	subs    map[int]func()
	subSeq  int
	enders  []func()
	log     *slog.Logger
	notifyN int
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// New returns an idle Machine.
func New(opts ...Option) *Machine {
	m := &Machine{
		state: Idle{},
		subs:  make(map[int]func()),
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers fn to run after every state change and returns a
// function that removes it.
func (m *Machine) Subscribe(fn func()) (unsubscribe func()) {
	m.subSeq++
	id := m.subSeq
	m.subs[id] = fn
	return func() { delete(m.subs, id) }
}

// OnEnd registers fn to run whenever an interaction ends, by commit or cancel,
// before subscribers are notified. Session owners use it to tear down timers.
func (m *Machine) OnEnd(fn func()) {
	m.enders = append(m.enders, fn)
}

// StartDrag begins moving ev from origin.
func (m *Machine) StartDrag(ev cal.Event, origin time.Time) error {
	if err := m.requireIdle("drag"); err != nil {
		return err
	}
	snap := ev.Clone()
	m.state = Dragging{Event: snap, Original: snap.Range(), Origin: origin}
	m.proposal = nil
	m.log.Debug("drag started", "event", snap.ID, "origin", origin)
	m.notify()
	return nil
}

// StartResize begins moving edge of ev.
func (m *Machine) StartResize(ev cal.Event, edge Edge) error {
	if err := m.requireIdle("resize"); err != nil {
		return err
	}
	snap := ev.Clone()
	m.state = Resizing{Event: snap, Original: snap.Range(), Edge: edge}
	m.proposal = nil
	m.log.Debug("resize started", "event", snap.ID, "edge", edge.String())
	m.notify()
	return nil
}

func (m *Machine) requireIdle(what string) error {
	if _, idle := m.state.(Idle); idle {
		return nil
	}
	m.log.Error("interaction start rejected", "requested", what, "err", ErrInteractionActive)
	return ErrInteractionActive
}

// UpdateProposedRange replaces the proposal and highlight set.
func (m *Machine) UpdateProposedRange(r cal.Range, valid bool, highlight Highlight) error {
	if !m.Active() {
		m.log.Error("proposal without interaction", "err", ErrNoInteraction)
		return ErrNoInteraction
	}
	m.proposal = &Proposal{Range: r, Valid: valid, Highlight: highlight.Clone()}
	m.notify()
	return nil
}

// ClearProposal drops the proposal and highlight set but keeps the
// interaction alive, as when the pointer leaves the surface.
func (m *Machine) ClearProposal() {
	if m.proposal == nil {
		return
	}
	m.proposal = nil
	m.notify()
}

// CompleteDrag ends the active drag. It returns the committed range and true
// when a valid proposal exists; otherwise it behaves like Cancel and returns
// false. Proposal state must not be read after this call.
func (m *Machine) CompleteDrag() (cal.Range, bool, error) {
	if _, ok := m.state.(Dragging); !ok {
		return m.completeMismatch(ErrNotDragging)
	}
	return m.complete()
}

// CompleteResize ends the active resize; see CompleteDrag.
func (m *Machine) CompleteResize() (cal.Range, bool, error) {
	if _, ok := m.state.(Resizing); !ok {
		return m.completeMismatch(ErrNotResizing)
	}
	return m.complete()
}

func (m *Machine) completeMismatch(err error) (cal.Range, bool, error) {
	if !m.Active() {
		err = ErrNoInteraction
	}
	m.log.Error("commit rejected", "err", err)
	return cal.Range{}, false, err
}

func (m *Machine) complete() (cal.Range, bool, error) {
	p := m.proposal
	if p == nil || !p.Valid {
		m.log.Debug("commit without valid proposal, cancelling")
		m.end()
		return cal.Range{}, false, nil
	}
	r := p.Range
	m.end()
	return r, true, nil
}

// Cancel ends any active interaction without a result.
func (m *Machine) Cancel() {
	if !m.Active() {
		return
	}
	m.log.Debug("interaction cancelled")
	m.end()
}

// end clears every piece of interaction state before a single notification,
// so subscribers never observe a half-cleared machine.
func (m *Machine) end() {
	m.state = Idle{}
	m.proposal = nil
	for _, fn := range m.enders {
		fn()
	}
	m.notify()
}

func (m *Machine) notify() {
	m.notifyN++
	for _, fn := range m.subscribers() {
		fn()
	}
}

func (m *Machine) subscribers() []func() {
	fns := make([]func(), 0, len(m.subs))
	for id := 1; id <= m.subSeq; id++ {
		if fn, ok := m.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	return fns
}

// State returns the current interaction.
func (m *Machine) State() Interaction {
	return m.state
}

// Active reports whether a drag or resize is in progress.
func (m *Machine) Active() bool {
	_, idle := m.state.(Idle)
	return !idle
}

func (m *Machine) IsDragging() bool {
	_, ok := m.state.(Dragging)
	return ok
}

func (m *Machine) IsResizing() bool {
	_, ok := m.state.(Resizing)
	return ok
}

// Event returns the snapshot of the event being changed.
func (m *Machine) Event() (cal.Event, bool) {
	switch s := m.state.(type) {
	case Dragging:
		return s.Event.Clone(), true
	case Resizing:
		return s.Event.Clone(), true
	default:
		return cal.Event{}, false
	}
}

// Original returns the event's range when the interaction started.
func (m *Machine) Original() (cal.Range, bool) {
	switch s := m.state.(type) {
	case Dragging:
		return s.Original, true
	case Resizing:
		return s.Original, true
	default:
		return cal.Range{}, false
	}
}

// Proposal returns a copy of the current proposal.
func (m *Machine) Proposal() (Proposal, bool) {
	if m.proposal == nil {
		return Proposal{}, false
	}
	p := *m.proposal
	p.Highlight = p.Highlight.Clone()
	return p, true
}

func (m *Machine) ProposedRange() (cal.Range, bool) {
	if m.proposal == nil {
		return cal.Range{}, false
	}
	return m.proposal.Range, true
}

func (m *Machine) IsProposedValid() bool {
	return m.proposal != nil && m.proposal.Valid
}

func (m *Machine) Highlight() Highlight {
	if m.proposal == nil {
		return nil
	}
	return m.proposal.Highlight.Clone()
}

// Notifications returns how many change notifications have been sent.
func (m *Machine) Notifications() int {
	return m.notifyN
}
