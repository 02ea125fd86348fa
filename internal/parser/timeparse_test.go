package parser

import (
	"errors"
	"testing"
	"time"
)

// Friday, March 15 2024.
func fixedParser() *Parser {
	p := New(time.UTC)
	p.SetNow(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	return p
}

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	p := fixedParser()

	tests := []struct {
		input    string
		expected time.Time
	}{
		{"today", ymd(2024, 3, 15)},
		{"Tomorrow", ymd(2024, 3, 16)},
		{"yesterday", ymd(2024, 3, 14)},
		{"next monday", ymd(2024, 3, 18)},
		{"this friday", ymd(2024, 3, 22)},
		{"this sat", ymd(2024, 3, 16)},
		{"in 3 days", ymd(2024, 3, 18)},
		{"in 2 weeks", ymd(2024, 3, 29)},
		{"in 1 month", ymd(2024, 4, 15)},
		{"2 weeks from now", ymd(2024, 3, 29)},
		{"10 days ago", ymd(2024, 3, 5)},
		{"2025-01-31", ymd(2025, 1, 31)},
		{"12/25", ymd(2024, 12, 25)},
		{"2/29/2024", ymd(2024, 2, 29)},
		{"Jan 2", ymd(2024, 1, 2)},
		{"September 9, 2026", ymd(2026, 9, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := p.ParseDate(tt.input)
			if err != nil {
				t.Fatalf("ParseDate(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDateErrors(t *testing.T) {
	p := fixedParser()

	tests := []struct {
		input    string
		expected error
	}{
		{"", ErrEmpty},
		{"someday", ErrNoDate},
		{"tomorrow afternoon", ErrTrailing},
		{"2023-02-30", ErrNoDate},
		{"13/01", ErrNoDate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := p.ParseDate(tt.input)
			if !errors.Is(err, tt.expected) {
				t.Errorf("ParseDate(%q) error = %v, want %v", tt.input, err, tt.expected)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	p := fixedParser()
	at := func(d, h, m int) time.Time { return time.Date(2024, 3, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		input  string
		title  string
		start  time.Time
		end    time.Time
		allDay bool
	}{
		{"tomorrow 2pm dentist appointment", "dentist appointment", at(16, 14, 0), at(16, 15, 0), false},
		{"today at 9:30am-11am standup", "standup", at(15, 9, 30), at(15, 11, 0), false},
		{"2-4pm review", "review", at(15, 14, 0), at(15, 16, 0), false},
		{"next monday submit report", "submit report", at(18, 0, 0), at(18, 0, 0), true},
		{"in 3 days noon lunch", "lunch", at(18, 12, 0), at(18, 13, 0), false},
		{"14:00 call", "call", at(15, 14, 0), at(15, 15, 0), false},
		{"pick up 2 parcels", "pick up 2 parcels", at(15, 0, 0), at(15, 0, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ev, err := p.ParseEvent(tt.input)
			if err != nil {
				t.Fatalf("ParseEvent(%q): %v", tt.input, err)
			}
			if ev.Title != tt.title {
				t.Errorf("title %q, want %q", ev.Title, tt.title)
			}
			if ev.AllDay != tt.allDay {
				t.Errorf("all-day %v, want %v", ev.AllDay, tt.allDay)
			}
			if !ev.Start.Equal(tt.start) || !ev.End.Equal(tt.end) {
				t.Errorf("range %v..%v, want %v..%v", ev.Start, ev.End, tt.start, tt.end)
			}
		})
	}
}

func TestParseEventErrors(t *testing.T) {
	p := fixedParser()

	tests := []struct {
		input    string
		expected error
	}{
		{"   ", ErrEmpty},
		{"tomorrow 3pm", ErrNoTitle},
		{"4pm-2pm backwards", ErrTimeOrder},
		{"25:00 late", ErrBadDayTime},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := p.ParseEvent(tt.input)
			if !errors.Is(err, tt.expected) {
				t.Errorf("ParseEvent(%q) error = %v, want %v", tt.input, err, tt.expected)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	for _, s := range []string{"sun", "Sunday", "0"} {
		if d, ok := ParseWeekday(s); !ok || d != time.Sunday {
			t.Errorf("ParseWeekday(%q) = %v, %v", s, d, ok)
		}
	}
	if _, ok := ParseWeekday("funday"); ok {
		t.Error("ParseWeekday accepted funday")
	}
}
