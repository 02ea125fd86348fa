// Package clock provides the scheduled-callback handles used by the
// interaction engine. Every implementation runs callbacks on the owner's
// goroutine and Stop is synchronous: once Stop returns the callback will not
// run.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a handle to a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call prevented the
	// callback from running and is safe to call more than once.
	Stop() bool
}

// Scheduler arms single-shot callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

// StopTimer stops t when it is non-nil.
func StopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}

// Manual is a deterministic Scheduler. Callbacks only run from Advance, on
// the calling goroutine.
type Manual struct {
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	id      uint64
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManual returns a Manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{m: m, id: m.seq, when: m.now.Add(d), fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running every callback that comes due
// in deadline order. Callbacks armed while advancing run too if they fall
// inside the window.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.when
		next.fired = true
		next.fn()
	}
	m.now = target
	m.compact()
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && !t.when.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].when.Equal(due[j].when) {
			return due[i].when.Before(due[j].when)
		}
		return due[i].id < due[j].id
	})
	return due[0]
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	m.timers = live
}

// Posted arms real timers but never runs callbacks on the timer goroutine.
// When a timer expires its ID is handed to post, and the owner calls Run with
// that ID from its own goroutine (a bubbletea Update, for instance).
type Posted struct {
	post func(id uint64)

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*postedTimer
}

type postedTimer struct {
	p     *Posted
	id    uint64
	timer *time.Timer
	fn    func()
}

func (t *postedTimer) Stop() bool {
	t.p.mu.Lock()
	_, live := t.p.pending[t.id]
	delete(t.p.pending, t.id)
	t.p.mu.Unlock()
	t.timer.Stop()
	return live
}

// NewPosted returns a Posted scheduler delivering expirations through post.
func NewPosted(post func(id uint64)) *Posted {
	return &Posted{post: post, pending: make(map[uint64]*postedTimer)}
}

func (p *Posted) Now() time.Time {
	return time.Now()
}

func (p *Posted) AfterFunc(d time.Duration, fn func()) Timer {
	p.mu.Lock()
	p.seq++
	id := p.seq
	t := &postedTimer{p: p, id: id, fn: fn}
	p.pending[id] = t
	p.mu.Unlock()

	t.timer = time.AfterFunc(d, func() { p.post(id) })
	return t
}

// Run executes the callback for id if it is still armed. Expirations for
// stopped timers are ignored.
func (p *Posted) Run(id uint64) {
	p.mu.Lock()
	t, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()
	if ok {
		t.fn()
	}
}
