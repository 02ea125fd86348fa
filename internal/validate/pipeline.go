// Package validate decides whether a proposed placement may be committed.
package validate

import (
	"log/slog"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

// Reason explains a verdict.
type Reason int

const (
	ReasonAccepted Reason = iota
	ReasonBlocked
	ReasonRejected
	ReasonOutOfBounds
)

func (r Reason) String() string {
	switch r {
	case ReasonAccepted:
		return "accepted"
	case ReasonBlocked:
		return "blocked"
	case ReasonRejected:
		return "rejected"
	case ReasonOutOfBounds:
		return "out of bounds"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of a check. It is never an error: an invalid
// placement keeps the interaction alive.
type Verdict struct {
	Valid  bool
	Reason Reason
	Cell   time.Time // first blocked cell, for ReasonBlocked
}

// Region marks calendar days or time slots as non-interactive.
type Region interface {
	IsBlocked(cell time.Time) bool
}

// RegionFunc adapts a function to Region.
type RegionFunc func(cell time.Time) bool

func (f RegionFunc) IsBlocked(cell time.Time) bool { return f(cell) }

// Weekdays blocks every cell falling on one of the listed weekdays.
func Weekdays(days ...time.Weekday) Region {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return RegionFunc(func(cell time.Time) bool { return set[cell.Weekday()] })
}

// Dates blocks the listed calendar dates.
func Dates(dates ...time.Time) Region {
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[d.Format("2006-01-02")] = true
	}
	return RegionFunc(func(cell time.Time) bool { return set[cell.Format("2006-01-02")] })
}

// AcceptFunc is the consumer's acceptance callback.
type AcceptFunc func(ev cal.Event, proposed cal.Range) bool

// Pipeline runs the acceptance checks in order and stops at the first
// rejection: blocked regions, then the consumer callback, then the boundary
// dates. The callback is never consulted for a blocked placement.
type Pipeline struct {
	Regions []Region
	Accept  AcceptFunc
	Min     time.Time // zero means unbounded
	Max     time.Time // zero means unbounded

	Log *slog.Logger
}

// Check evaluates proposed for ev. cells is the highlight set the proposal
// would occupy.
func (p *Pipeline) Check(ev cal.Event, proposed cal.Range, cells []time.Time) Verdict {
	for _, cell := range cells {
		for _, region := range p.Regions {
			if region.IsBlocked(cell) {
				p.debug("placement blocked", "event", ev.ID, "cell", cell)
				return Verdict{Reason: ReasonBlocked, Cell: cell}
			}
		}
	}

	if p.Accept != nil && !p.Accept(ev, proposed) {
		p.debug("placement rejected by callback", "event", ev.ID, "range", proposed.String())
		return Verdict{Reason: ReasonRejected}
	}

	if !p.InBounds(ev, proposed) {
		p.debug("placement out of bounds", "event", ev.ID, "range", proposed.String())
		return Verdict{Reason: ReasonOutOfBounds}
	}

	return Verdict{Valid: true, Reason: ReasonAccepted}
}

// InBounds reports whether r, proposed for ev, lies within the dates Min
// through Max. Max is an inclusive day: a timed event may run until midnight
// at its end, and an all-day event, whose End is its last date, may end on it.
func (p *Pipeline) InBounds(ev cal.Event, r cal.Range) bool {
	if !p.Min.IsZero() && r.Start.Before(datemath.StartOfDay(p.Min)) {
		return false
	}
	if p.Max.IsZero() {
		return true
	}
	limit := datemath.AddCalendarDays(datemath.StartOfDay(p.Max), 1)
	if ev.AllDay {
		return r.End.Before(limit)
	}
	return !r.End.After(limit)
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.Log != nil {
		p.Log.Debug(msg, args...)
	}
}
