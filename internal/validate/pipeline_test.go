package validate

import (
	"testing"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

func march(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func span(start, end int) (cal.Range, []time.Time) {
	r := cal.Range{Start: march(start), End: march(end)}
	return r, datemath.DaysInclusive(r.Start, r.End)
}

func TestBlockedRegionShortCircuits(t *testing.T) {
	calls := 0
	p := &Pipeline{
		Regions: []Region{Dates(march(10))},
		Accept: func(cal.Event, cal.Range) bool {
			calls++
			return true
		},
	}

	r, cells := span(9, 11)
	v := p.Check(cal.Event{ID: "a"}, r, cells)
	if v.Valid || v.Reason != ReasonBlocked {
		t.Errorf("verdict %+v, want blocked", v)
	}
	if !v.Cell.Equal(march(10)) {
		t.Errorf("blocked cell %v, want Mar 10", v.Cell)
	}
	if calls != 0 {
		t.Errorf("consumer callback invoked %d times for a blocked placement", calls)
	}

	r, cells = span(11, 12)
	if v := p.Check(cal.Event{ID: "a"}, r, cells); !v.Valid {
		t.Errorf("unblocked placement rejected: %+v", v)
	}
	if calls != 1 {
		t.Errorf("callback calls = %d, want 1", calls)
	}
}

func TestCheckOrder(t *testing.T) {
	reject := func(cal.Event, cal.Range) bool { return false }

	tests := []struct {
		name     string
		pipeline Pipeline
		start    int
		end      int
		expected Reason
	}{
		{"default accepts", Pipeline{}, 5, 6, ReasonAccepted},
		{"callback rejects", Pipeline{Accept: reject}, 5, 6, ReasonRejected},
		{"callback runs before bounds", Pipeline{Accept: reject, Max: march(4)}, 5, 6, ReasonRejected},
		{"before min", Pipeline{Min: march(6)}, 5, 6, ReasonOutOfBounds},
		{"after max", Pipeline{Max: march(4)}, 5, 6, ReasonOutOfBounds},
		{"inside bounds", Pipeline{Min: march(5), Max: march(6)}, 5, 6, ReasonAccepted},
		{"weekday block wins", Pipeline{Regions: []Region{Weekdays(time.Saturday)}, Accept: reject}, 7, 9, ReasonBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, cells := span(tt.start, tt.end)
			v := tt.pipeline.Check(cal.Event{}, r, cells)
			if v.Reason != tt.expected {
				t.Errorf("reason %s, want %s", v.Reason, tt.expected)
			}
			if v.Valid != (tt.expected == ReasonAccepted) {
				t.Errorf("valid=%v for reason %s", v.Valid, v.Reason)
			}
		})
	}
}

func TestMaxDateIsInclusive(t *testing.T) {
	p := Pipeline{Max: march(10)}
	at := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		ev       cal.Event
		r        cal.Range
		expected bool
	}{
		{"timed on max date", cal.Event{}, cal.Range{Start: at(10, 10), End: at(10, 11)}, true},
		{"timed until midnight after max", cal.Event{}, cal.Range{Start: at(10, 22), End: at(11, 0)}, true},
		{"timed into next day", cal.Event{}, cal.Range{Start: at(10, 22), End: at(11, 1)}, false},
		{"all-day on max date", cal.Event{AllDay: true}, cal.Range{Start: march(10), End: march(10)}, true},
		{"all-day ending after max", cal.Event{AllDay: true}, cal.Range{Start: march(10), End: march(11)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.InBounds(tt.ev, tt.r); got != tt.expected {
				t.Errorf("InBounds(%v) = %v, want %v", tt.r, got, tt.expected)
			}
		})
	}
}
