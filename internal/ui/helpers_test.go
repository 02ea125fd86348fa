package ui

import (
	"testing"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/interaction"
)

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		weekStart time.Weekday
		expected  time.Time
	}{
		{"Monday week, Saturday", day(time.March, 1), time.Monday, day(time.February, 24)},
		{"Monday week, Monday", day(time.March, 3), time.Monday, day(time.March, 3)},
		{"Sunday week, Saturday", day(time.March, 1), time.Sunday, day(time.February, 23)},
		{"Sunday week, Sunday", day(time.March, 2), time.Sunday, day(time.March, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := startOfWeek(tt.date, tt.weekStart); !got.Equal(tt.expected) {
				t.Errorf("startOfWeek(%v, %v) = %v, want %v", tt.date, tt.weekStart, got, tt.expected)
			}
		})
	}
}

func TestLastDay(t *testing.T) {
	tests := []struct {
		name     string
		event    cal.Event
		expected time.Time
	}{
		{
			name:     "all-day end is inclusive",
			event:    cal.Event{Start: day(time.March, 5), End: day(time.March, 7), AllDay: true},
			expected: day(time.March, 7),
		},
		{
			name:     "timed event ending at midnight",
			event:    cal.Event{Start: at(time.March, 5, 22, 0), End: day(time.March, 6)},
			expected: day(time.March, 5),
		},
		{
			name:     "timed event past midnight",
			event:    cal.Event{Start: at(time.March, 5, 22, 0), End: at(time.March, 6, 1, 0)},
			expected: day(time.March, 6),
		},
		{
			name:     "zero length at midnight",
			event:    cal.Event{Start: day(time.March, 5), End: day(time.March, 5)},
			expected: day(time.March, 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastDay(tt.event); !got.Equal(tt.expected) {
				t.Errorf("lastDay = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSlotIndex(t *testing.T) {
	slot := 30 * time.Minute
	tests := []struct {
		offset   time.Duration
		expected int
	}{
		{0, 0},
		{29 * time.Minute, 0},
		{30 * time.Minute, 1},
		{-time.Minute, -1},
		{-30 * time.Minute, -1},
		{-31 * time.Minute, -2},
	}

	for _, tt := range tests {
		if got := slotIndex(tt.offset, slot); got != tt.expected {
			t.Errorf("slotIndex(%v) = %d, want %d", tt.offset, got, tt.expected)
		}
	}
}

func TestBlockHandle(t *testing.T) {
	wide := block{x: 10, y: 5, w: 8, h: 1, first: true, last: true}
	tail := block{x: 10, y: 5, w: 8, h: 1, first: false, last: true}
	tall := block{x: 10, y: 5, w: 8, h: 4, first: true, last: true}
	short := block{x: 10, y: 5, w: 8, h: 2, first: true, last: true}

	tests := []struct {
		name   string
		b      block
		x, y   int
		mode   ViewMode
		edge   interaction.Edge
		resize bool
	}{
		{"month start column", wide, 10, 5, ViewMonth, interaction.EdgeStart, true},
		{"month end column", wide, 17, 5, ViewMonth, interaction.EdgeEnd, true},
		{"month middle", wide, 13, 5, ViewMonth, interaction.EdgeStart, false},
		{"month continuation has no start handle", tail, 10, 5, ViewMonth, interaction.EdgeStart, false},
		{"timeline top row", tall, 12, 5, ViewDay, interaction.EdgeStart, true},
		{"timeline bottom row", tall, 12, 8, ViewDay, interaction.EdgeEnd, true},
		{"timeline two rows grab the end only", short, 12, 5, ViewDay, interaction.EdgeStart, false},
		{"timeline two rows bottom", short, 12, 6, ViewDay, interaction.EdgeEnd, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge, resize := tt.b.handle(tt.x, tt.y, tt.mode)
			if resize != tt.resize || (resize && edge != tt.edge) {
				t.Errorf("handle = %v, %v; want %v, %v", edge, resize, tt.edge, tt.resize)
			}
		})
	}
}
