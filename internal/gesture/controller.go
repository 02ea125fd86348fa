// Package gesture turns pointer and keyboard input on a calendar surface into
// interaction proposals and commits.
package gesture

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/clock"
	"github.com/cwarden/skuld/internal/datemath"
	"github.com/cwarden/skuld/internal/edgenav"
	"github.com/cwarden/skuld/internal/interaction"
	"github.com/cwarden/skuld/internal/layout"
	"github.com/cwarden/skuld/internal/recurrence"
	"github.com/cwarden/skuld/internal/validate"
)

// ErrWrongPointer is returned when input arrives from a pointer other than the
// one that started the interaction.
var ErrWrongPointer = errors.New("input from a different pointer")

// Store is the event storage the controller reads siblings from and commits
// to.
type Store interface {
	QueryEventsOverlapping(r cal.Range) ([]cal.Event, error)
	CommitEvent(ev cal.Event) error
	recurrence.Writer
}

// Granularity is the unit proposals snap to.
type Granularity int

const (
	// Days snaps to whole calendar days, as on a month grid.
	Days Granularity = iota
	// Slots snaps to time slots, as on a day timeline.
	Slots
)

// Pointer identifies one pointer and its surface position.
type Pointer struct {
	ID  int
	Pos Point
}

// Options configures a Controller.
type Options struct {
	Granularity   Granularity
	Slot          time.Duration // slot length for Slots
	BatchInterval time.Duration
	Edge          edgenav.Config
	Pipeline      *validate.Pipeline
	Logger        *slog.Logger
}

// Outcome reports what a commit did.
type Outcome struct {
	Committed bool
	Event     cal.Event       // the committed event
	Exception *recurrence.Key // set when an occurrence was committed as an exception
}

// Controller drives one surface. It owns the edge-navigation session so a drag
// survives page turns, and batches pointer moves to one proposal per tick.
// All methods must be called from the surface's event goroutine.
type Controller struct {
	opts     Options
	machine  *interaction.Machine
	geom     Geometry
	store    Store
	edges    *edgenav.Controller
	resolver *recurrence.Resolver
	pipeline *validate.Pipeline
	log      *slog.Logger

	batch batcher

	pointerID int
	keyboard  bool
	origin    time.Time
	delta     interaction.Delta
	lastPos   Point
	hasPos    bool
	verdict   validate.Verdict
	proposals int
}

// New returns a Controller for machine on a surface with geometry geom.
func New(machine *interaction.Machine, sched clock.Scheduler, geom Geometry, host edgenav.Host, store Store, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = DefaultBatchInterval
	}
	if opts.Granularity == Slots && opts.Slot <= 0 {
		opts.Slot = 15 * time.Minute
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = &validate.Pipeline{}
	}

	c := &Controller{
		opts:     opts,
		machine:  machine,
		geom:     geom,
		store:    store,
		edges:    edgenav.New(opts.Edge, sched, host, opts.Logger),
		resolver: recurrence.NewResolver(store, opts.Logger),
		pipeline: pipeline,
		log:      opts.Logger,
	}
	c.batch = batcher{sched: sched, interval: opts.BatchInterval, process: c.process}
	c.edges.SetRecompute(c.recompute)
	machine.OnEnd(c.teardown)
	return c
}

// SetGeometry replaces the surface geometry, as after a page turn or resize of
// the viewport.
func (c *Controller) SetGeometry(g Geometry) {
	c.geom = g
}

// Geometry returns the current surface geometry.
func (c *Controller) Geometry() Geometry {
	return c.geom
}

// Machine returns the state machine the controller drives.
func (c *Controller) Machine() *interaction.Machine {
	return c.machine
}

// Verdict returns the validation result of the latest proposal.
func (c *Controller) Verdict() validate.Verdict {
	return c.verdict
}

// Proposals returns how many proposals have been computed.
func (c *Controller) Proposals() int {
	return c.proposals
}

// StartDrag begins moving ev with pointer p.
func (c *Controller) StartDrag(ev cal.Event, p Pointer) error {
	origin := c.snap(c.dateAt(p.Pos, ev.Start))
	if err := c.machine.StartDrag(ev, origin); err != nil {
		return err
	}
	c.begin(p, origin)
	c.edges.Begin(p.ID, edgenav.Both)
	c.log.Debug("drag started", "event", ev.ID, "origin", origin)
	return nil
}

// StartResize begins moving one edge of ev with pointer p. A start edge may
// only page backward and an end edge only forward.
func (c *Controller) StartResize(ev cal.Event, edge interaction.Edge, p Pointer) error {
	origin := c.snap(c.dateAt(p.Pos, edgeTime(ev, edge)))
	if err := c.machine.StartResize(ev, edge); err != nil {
		return err
	}
	c.begin(p, origin)
	allowed := edgenav.Allowed{Forward: true}
	if edge == interaction.EdgeStart {
		allowed = edgenav.Allowed{Backward: true}
	}
	c.edges.Begin(p.ID, allowed)
	c.log.Debug("resize started", "event", ev.ID, "edge", edge.String(), "origin", origin)
	return nil
}

// StartKeyboardDrag begins moving ev with Nudge steps.
func (c *Controller) StartKeyboardDrag(ev cal.Event) error {
	if err := c.machine.StartDrag(ev, ev.Start); err != nil {
		return err
	}
	c.beginKeyboard(ev.Start)
	return nil
}

// StartKeyboardResize begins moving one edge of ev with Nudge steps.
func (c *Controller) StartKeyboardResize(ev cal.Event, edge interaction.Edge) error {
	if err := c.machine.StartResize(ev, edge); err != nil {
		return err
	}
	c.beginKeyboard(edgeTime(ev, edge))
	return nil
}

func (c *Controller) begin(p Pointer, origin time.Time) {
	c.pointerID = p.ID
	c.keyboard = false
	c.origin = origin
	c.delta = interaction.Delta{}
	c.lastPos = p.Pos
	c.hasPos = true
	c.verdict = validate.Verdict{}
}

func (c *Controller) beginKeyboard(origin time.Time) {
	c.keyboard = true
	c.origin = origin
	c.delta = interaction.Delta{}
	c.hasPos = false
	c.verdict = validate.Verdict{}
	c.propose(c.delta)
}

// Nudge moves a keyboard interaction by steps units: days for Days, slots for
// Slots.
func (c *Controller) Nudge(steps int) error {
	if !c.machine.Active() {
		return interaction.ErrNoInteraction
	}
	if c.opts.Granularity == Slots {
		c.delta = c.delta.Add(interaction.Delta{Offset: time.Duration(steps) * c.opts.Slot})
	} else {
		c.delta = c.delta.Add(interaction.Delta{Days: steps})
	}
	c.propose(c.delta)
	return nil
}

// PointerMove queues a move of pointer p. The proposal is recomputed at most
// once per batch interval, from the latest position.
func (c *Controller) PointerMove(p Pointer) error {
	if !c.machine.Active() || c.keyboard {
		return interaction.ErrNoInteraction
	}
	if p.ID != c.pointerID {
		return ErrWrongPointer
	}
	c.lastPos = p.Pos
	c.hasPos = true
	c.batch.push(p.Pos)
	return nil
}

// PointerLeave clears the proposal at once and disarms edge navigation. The
// interaction itself stays active until the pointer is released.
func (c *Controller) PointerLeave(id int) {
	if !c.machine.Active() || c.keyboard || id != c.pointerID {
		return
	}
	c.batch.cancel()
	c.hasPos = false
	c.edges.Leave()
	c.machine.ClearProposal()
	c.log.Debug("pointer left surface", "pointer", id)
}

// PointerUp releases pointer p and commits.
func (c *Controller) PointerUp(p Pointer) (Outcome, error) {
	if !c.machine.Active() || c.keyboard {
		return Outcome{}, interaction.ErrNoInteraction
	}
	if p.ID != c.pointerID {
		return Outcome{}, ErrWrongPointer
	}
	return c.Commit()
}

// Commit completes the active interaction. Any batched move is processed
// first. An invalid or missing proposal ends the interaction like Cancel and
// reports Committed false.
func (c *Controller) Commit() (Outcome, error) {
	c.batch.flush()

	ev, ok := c.machine.Event()
	if !ok {
		return Outcome{}, interaction.ErrNoInteraction
	}

	var (
		r         cal.Range
		committed bool
		err       error
	)
	if c.machine.IsDragging() {
		r, committed, err = c.machine.CompleteDrag()
	} else {
		r, committed, err = c.machine.CompleteResize()
	}
	if err != nil {
		return Outcome{}, err
	}
	if !committed {
		c.log.Debug("interaction ended without commit", "event", ev.ID)
		return Outcome{}, nil
	}

	updated := ev.WithRange(r)
	if updated.IsOccurrence() {
		key, err := c.resolver.Commit(updated)
		if err != nil {
			return Outcome{}, fmt.Errorf("committing occurrence %s: %w", ev.ID, err)
		}
		c.log.Info("occurrence rescheduled", "event", ev.ID, "key", key.String(), "range", r.String())
		return Outcome{Committed: true, Event: updated, Exception: &key}, nil
	}

	if err := c.store.CommitEvent(updated); err != nil {
		return Outcome{}, fmt.Errorf("committing event %s: %w", ev.ID, err)
	}
	c.log.Info("event rescheduled", "event", ev.ID, "range", r.String())
	return Outcome{Committed: true, Event: updated}, nil
}

// Cancel abandons the active interaction.
func (c *Controller) Cancel() {
	c.machine.Cancel()
}

// Preview lays out the proposed placement among the events it would overlap.
func (c *Controller) Preview() (layout.Placement, bool, error) {
	p, ok := c.machine.Proposal()
	if !ok {
		return layout.Placement{}, false, nil
	}
	ev, _ := c.machine.Event()
	proposed := ev.WithRange(p.Range)

	siblings, err := c.store.QueryEventsOverlapping(cal.DaySpan(p.Range))
	if err != nil {
		return layout.Placement{}, false, fmt.Errorf("querying siblings: %w", err)
	}
	placement, ok := layout.Preview(siblings, proposed, layout.Options{DayGranularity: c.opts.Granularity == Days})
	return placement, ok, nil
}

// teardown runs whenever the machine ends an interaction, however it ended.
func (c *Controller) teardown() {
	c.batch.cancel()
	c.edges.End()
	c.keyboard = false
	c.hasPos = false
	c.delta = interaction.Delta{}
}

// recompute re-runs the proposal after a page turn, against the new page, from
// the last pointer position.
func (c *Controller) recompute() {
	if !c.machine.Active() || !c.hasPos {
		return
	}
	c.batch.cancel()
	c.process(c.lastPos)
}

func (c *Controller) process(pos Point) {
	if !c.machine.Active() {
		return
	}
	at, _ := c.geom.DateAt(pos)
	c.delta = c.deltaTo(c.snap(at))
	c.propose(c.delta)
	c.edges.Observe(pos.Along(c.geom.Axis()), extentAlong(c.geom), c.steps(c.delta))
}

// deltaTo returns the displacement from the interaction's origin to at.
func (c *Controller) deltaTo(at time.Time) interaction.Delta {
	d := interaction.Delta{Days: datemath.DayDistance(c.origin, at)}
	if c.opts.Granularity == Slots {
		d.Offset = datemath.TimeOfDay(at) - datemath.TimeOfDay(c.origin)
	}
	return d
}

func (c *Controller) steps(d interaction.Delta) int {
	if c.opts.Granularity == Slots && c.opts.Slot > 0 {
		return d.Days*int(24*time.Hour/c.opts.Slot) + int(d.Offset/c.opts.Slot)
	}
	return d.Days
}

func (c *Controller) propose(d interaction.Delta) {
	var (
		ev  cal.Event
		r   cal.Range
		ok  bool
		min = interaction.MinDaySpan
	)
	if c.opts.Granularity == Slots {
		min = interaction.MinSlotSpan(c.opts.Slot)
	}

	switch s := c.machine.State().(type) {
	case interaction.Dragging:
		ev, r, ok = s.Event, interaction.Move(s.Original, d), true
	case interaction.Resizing:
		ev, r, ok = s.Event, interaction.Resize(s.Original, s.Edge, d, min), true
	}
	if !ok {
		return
	}

	hl := c.highlight(ev, r)
	c.verdict = c.pipeline.Check(ev, r, hl)
	c.proposals++
	if err := c.machine.UpdateProposedRange(r, c.verdict.Valid, hl); err != nil {
		c.log.Warn("proposal dropped", "event", ev.ID, "error", err)
	}
}

func (c *Controller) highlight(ev cal.Event, r cal.Range) interaction.Highlight {
	if c.opts.Granularity == Slots {
		return interaction.HighlightSlots(r, c.opts.Slot)
	}
	// A timed event ending exactly at midnight does not occupy the next day.
	if !ev.AllDay && r.End.After(r.Start) && datemath.TimeOfDay(r.End) == 0 {
		r.End = r.End.Add(-time.Nanosecond)
	}
	return interaction.HighlightDays(r)
}

func (c *Controller) dateAt(pos Point, fallback time.Time) time.Time {
	if c.geom == nil {
		return fallback
	}
	at, ok := c.geom.DateAt(pos)
	if !ok {
		return fallback
	}
	return at
}

func (c *Controller) snap(t time.Time) time.Time {
	if c.opts.Granularity == Slots {
		return datemath.FloorToSlot(t, c.opts.Slot)
	}
	return datemath.StartOfDay(t)
}

func edgeTime(ev cal.Event, edge interaction.Edge) time.Time {
	if edge == interaction.EdgeStart {
		return ev.Start
	}
	return ev.End
}
