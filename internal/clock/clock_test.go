package clock

import (
	"testing"
	"time"
)

func TestManualRunsInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))

	var order []string
	m.AfterFunc(30*time.Millisecond, func() { order = append(order, "b") })
	m.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(50*time.Millisecond, func() { order = append(order, "c") })

	m.Advance(40 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
	if m.Pending() != 1 {
		t.Errorf("expected 1 pending timer, got %d", m.Pending())
	}
}

func TestManualStopIsSynchronousAndIdempotent(t *testing.T) {
	m := NewManual(time.Time{})
	ran := false
	timer := m.AfterFunc(time.Millisecond, func() { ran = true })

	if !timer.Stop() {
		t.Error("first Stop should report cancellation")
	}
	if timer.Stop() {
		t.Error("second Stop should be a no-op")
	}
	m.Advance(time.Second)
	if ran {
		t.Error("stopped timer ran")
	}
}

func TestManualRunsTimersArmedDuringAdvance(t *testing.T) {
	m := NewManual(time.Time{})
	count := 0
	var rearm func()
	rearm = func() {
		count++
		if count < 3 {
			m.AfterFunc(10*time.Millisecond, rearm)
		}
	}
	m.AfterFunc(10*time.Millisecond, rearm)

	m.Advance(25 * time.Millisecond)
	if count != 2 {
		t.Errorf("expected 2 runs inside the window, got %d", count)
	}
	m.Advance(10 * time.Millisecond)
	if count != 3 {
		t.Errorf("expected 3 runs, got %d", count)
	}
}

func TestPostedDeliversThroughOwner(t *testing.T) {
	fired := make(chan uint64, 1)
	p := NewPosted(func(id uint64) { fired <- id })

	ran := false
	p.AfterFunc(time.Millisecond, func() { ran = true })

	select {
	case id := <-fired:
		if ran {
			t.Fatal("callback ran on the timer goroutine")
		}
		p.Run(id)
	case <-time.After(time.Second):
		t.Fatal("timer never posted")
	}
	if !ran {
		t.Error("Run did not execute the callback")
	}
}

func TestPostedIgnoresStoppedTimers(t *testing.T) {
	fired := make(chan uint64, 1)
	p := NewPosted(func(id uint64) { fired <- id })

	ran := false
	timer := p.AfterFunc(time.Hour, func() { ran = true })
	if !timer.Stop() {
		t.Fatal("Stop should cancel a pending timer")
	}
	// A late expiration for a stopped timer must be dropped.
	p.Run(1)
	if ran {
		t.Error("stopped timer ran")
	}
}
