// Package edgenav pages the calendar while a drag or resize is held near the
// edge of the visible surface, keeping the interaction alive across pages.
package edgenav

import (
	"log/slog"
	"math"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/clock"
)

// Direction is a paging direction.
type Direction int

const (
	None Direction = iota
	Backward
	Forward
)

func (d Direction) String() string {
	switch d {
	case Backward:
		return "backward"
	case Forward:
		return "forward"
	default:
		return "none"
	}
}

// Allowed is the set of directions an interaction may page in.
type Allowed struct {
	Backward bool
	Forward  bool
}

// Both allows paging either way, as a move does.
var Both = Allowed{Backward: true, Forward: true}

func (a Allowed) permits(d Direction) bool {
	switch d {
	case Backward:
		return a.Backward
	case Forward:
		return a.Forward
	default:
		return false
	}
}

// Host is the page navigation host.
type Host interface {
	// Navigate pages in dir. It returns false when the host refuses.
	Navigate(dir Direction) bool
	// PageRange is the date range of the page on screen.
	PageRange() cal.Range
	// AfterNextRender runs fn once the next page has been laid out.
	AfterNextRender(fn func())
	// SetUserPaging enables or suppresses user-driven swipe/scroll paging.
	SetUserPaging(enabled bool)
}

// Config tunes edge detection.
type Config struct {
	Delay          time.Duration // hold time before a page turn
	ThresholdRatio float64       // share of the extent forming each zone
	MinThreshold   float64       // zone size floor, in surface units
	Min            time.Time     // earliest navigable date; zero is unbounded
	Max            time.Time     // latest navigable date; zero is unbounded
}

// DefaultConfig matches a touch-friendly calendar.
func DefaultConfig() Config {
	return Config{
		Delay:          600 * time.Millisecond,
		ThresholdRatio: 0.10,
		MinThreshold:   24,
	}
}

// Threshold returns the zone size for extent.
func (c Config) Threshold(extent float64) float64 {
	return math.Max(extent*c.ThresholdRatio, c.MinThreshold)
}

// Session is the transient state of one interaction near the edges.
type Session struct {
	PointerID int
	Delta     int     // accumulated step delta at the last observation
	LastPos   float64 // last pointer coordinate along the paging axis
	Pages     int     // net pages turned during the session

	armed Direction
	timer clock.Timer
}

// Armed returns the direction whose timer is pending.
func (s *Session) Armed() Direction {
	return s.armed
}

// Controller arms and fires page turns. It lives on the surface controller,
// not on any page, so its session survives page transitions.
type Controller struct {
	cfg   Config
	sched clock.Scheduler
	host  Host
	log   *slog.Logger

	session   *Session
	allowed   Allowed
	recompute func()
}

// New returns a Controller. recompute is called after each page turn has
// rendered, to re-run the proposal against the new page.
func New(cfg Config, sched clock.Scheduler, host Host, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Controller{cfg: cfg, sched: sched, host: host, log: log}
}

// SetRecompute installs the after-navigation callback.
func (c *Controller) SetRecompute(fn func()) {
	c.recompute = fn
}

// Begin opens a session for pointerID and suppresses user paging.
func (c *Controller) Begin(pointerID int, allowed Allowed) {
	c.End()
	c.session = &Session{PointerID: pointerID}
	c.allowed = allowed
	c.host.SetUserPaging(false)
}

// Session returns the open session, if any.
func (c *Controller) Session() *Session {
	return c.session
}

// Observe records the pointer coordinate pos along an axis of length extent
// and arms, keeps or disarms the page timer. delta is the interaction's
// current step delta.
func (c *Controller) Observe(pos, extent float64, delta int) {
	s := c.session
	if s == nil {
		return
	}
	s.LastPos = pos
	s.Delta = delta

	dir := c.zone(pos, extent)
	if dir != None && (!c.allowed.permits(dir) || !c.canNavigate(dir)) {
		dir = None
	}

	if dir == s.armed {
		return
	}
	c.disarm()
	if dir == None {
		return
	}
	s.armed = dir
	s.timer = c.sched.AfterFunc(c.cfg.Delay, func() { c.fire(dir) })
	c.log.Debug("edge navigation armed", "direction", dir.String())
}

// zone returns the edge zone pos falls in. The leading zone is checked
// first; when the zones overlap on a narrow surface the trailing zone, being
// checked last, wins.
func (c *Controller) zone(pos, extent float64) Direction {
	if extent <= 0 {
		return None
	}
	threshold := c.cfg.Threshold(extent)
	dir := None
	if pos <= threshold {
		dir = Backward
	}
	if pos >= extent-threshold {
		dir = Forward
	}
	return dir
}

func (c *Controller) canNavigate(dir Direction) bool {
	page := c.host.PageRange()
	switch dir {
	case Backward:
		return c.cfg.Min.IsZero() || page.Start.After(c.cfg.Min)
	case Forward:
		return c.cfg.Max.IsZero() || page.End.Before(c.cfg.Max)
	}
	return false
}

func (c *Controller) fire(dir Direction) {
	s := c.session
	if s == nil || s.armed != dir {
		return
	}
	s.armed = None
	s.timer = nil

	if !c.canNavigate(dir) || !c.host.Navigate(dir) {
		c.log.Debug("edge navigation refused", "direction", dir.String())
		return
	}
	if dir == Forward {
		s.Pages++
	} else {
		s.Pages--
	}
	c.log.Debug("edge navigation fired", "direction", dir.String(), "pages", s.Pages)

	c.host.AfterNextRender(func() {
		// The interaction may have ended while the page was changing.
		if c.session != s || c.recompute == nil {
			return
		}
		c.recompute()
	})
}

func (c *Controller) disarm() {
	if c.session == nil {
		return
	}
	clock.StopTimer(c.session.timer)
	c.session.timer = nil
	c.session.armed = None
}

// Leave disarms any pending page turn, as when the pointer leaves the surface.
func (c *Controller) Leave() {
	c.disarm()
}

// End disarms the timer, discards the session and restores user paging.
func (c *Controller) End() {
	if c.session == nil {
		return
	}
	c.disarm()
	c.session = nil
	c.host.SetUserPaging(true)
}
