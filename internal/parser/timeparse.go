// Package parser reads the date expressions used in the config file and on
// the command line, and quick-add event descriptions such as
// "tomorrow 2pm-3pm dentist".
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

var (
	ErrEmpty      = errors.New("empty input")
	ErrNoDate     = errors.New("no date found")
	ErrNoTitle    = errors.New("no title found")
	ErrTrailing   = errors.New("unexpected text after date")
	ErrTimeOrder  = errors.New("end time before start time")
	ErrBadDayTime = errors.New("invalid time of day")
)

// DefaultDuration is the length of a quick-added event given only a start time.
const DefaultDuration = time.Hour

var (
	weekdayRe   = regexp.MustCompile(`^(next|this)\s+(mon|monday|tue|tuesday|wed|wednesday|thu|thursday|fri|friday|sat|saturday|sun|sunday)\b`)
	inRe        = regexp.MustCompile(`^in\s+(\d+)\s+(day|days|week|weeks|month|months)\b`)
	fromNowRe   = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks|month|months)\s+(from\s+now|from\s+today|ago)\b`)
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\b`)
	usDateRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	monthNameRe = regexp.MustCompile(`^(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)\s+(\d{1,2})(?:,?\s+(\d{4}))?\b`)
	rangeRe     = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*-\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	timeRe      = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

var namedTimes = []struct {
	name string
	hour int
}{
	{"noon", 12},
	{"midnight", 0},
	{"morning", 9},
	{"afternoon", 14},
	{"evening", 18},
	{"night", 21},
}

// Parser resolves relative expressions against a fixed "now".
type Parser struct {
	now time.Time
	loc *time.Location
}

// New returns a Parser for the current time in loc. A nil loc means local time.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{now: time.Now().In(loc), loc: loc}
}

// SetNow fixes the reference time.
func (p *Parser) SetNow(now time.Time) {
	p.now = now.In(p.loc)
}

// ParseDate parses a whole string as a date expression: today, tomorrow,
// yesterday, next/this <weekday>, in N days|weeks|months, N days from now,
// N weeks ago, YYYY-MM-DD, MM/DD[/YYYY], Jan 2[, 2006].
func (p *Parser) ParseDate(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, ErrEmpty
	}
	d, rest, ok := p.date(expr)
	if !ok {
		return time.Time{}, fmt.Errorf("%w in %q", ErrNoDate, expr)
	}
	if rest != "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTrailing, rest)
	}
	return d, nil
}

// ParseEvent parses a quick-add description: an optional date (default
// today), an optional time or time range, and a title. Without a time the
// event is all-day.
func (p *Parser) ParseEvent(input string) (cal.Event, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return cal.Event{}, ErrEmpty
	}

	day, rest, ok := p.date(input)
	if !ok {
		day = p.today()
	}

	ev := cal.Event{Start: day, End: day, AllDay: true}
	start, end, rest, hasTime, err := p.timeOfDay(rest)
	if err != nil {
		return cal.Event{}, err
	}
	if hasTime {
		ev.AllDay = false
		ev.Start = datemath.AtTimeOfDay(day, start)
		if end < 0 {
			ev.End = ev.Start.Add(DefaultDuration)
		} else {
			ev.End = datemath.AtTimeOfDay(day, end)
		}
	}

	ev.Title = strings.TrimSpace(rest)
	if ev.Title == "" {
		return cal.Event{}, ErrNoTitle
	}
	return ev, nil
}

func (p *Parser) date(input string) (time.Time, string, bool) {
	if d, rest, ok := p.relativeDate(input); ok {
		return d, rest, true
	}
	return p.absoluteDate(input)
}

func (p *Parser) relativeDate(input string) (time.Time, string, bool) {
	lower := strings.ToLower(input)

	for _, w := range []struct {
		word string
		days int
	}{{"today", 0}, {"tomorrow", 1}, {"tmrw", 1}, {"yesterday", -1}} {
		if hasWord(lower, w.word) {
			return datemath.AddCalendarDays(p.today(), w.days), strings.TrimSpace(input[len(w.word):]), true
		}
	}

	if m := weekdayRe.FindStringSubmatch(lower); m != nil {
		d := p.nextWeekday(parseWeekday(m[2]), m[1] == "next")
		return d, strings.TrimSpace(input[len(m[0]):]), true
	}

	if m := inRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return p.offset(n, m[2]), strings.TrimSpace(input[len(m[0]):]), true
	}

	if m := fromNowRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if m[3] == "ago" {
			n = -n
		}
		return p.offset(n, m[2]), strings.TrimSpace(input[len(m[0]):]), true
	}

	return time.Time{}, input, false
}

func (p *Parser) absoluteDate(input string) (time.Time, string, bool) {
	lower := strings.ToLower(input)

	if m := isoDateRe.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t, ok := p.validDate(y, time.Month(mo), d); ok {
			return t, strings.TrimSpace(input[len(m[0]):]), true
		}
	}

	if m := usDateRe.FindStringSubmatch(lower); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y := p.now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		if t, ok := p.validDate(y, time.Month(mo), d); ok {
			return t, strings.TrimSpace(input[len(m[0]):]), true
		}
	}

	if m := monthNameRe.FindStringSubmatch(lower); m != nil {
		d, _ := strconv.Atoi(m[2])
		y := p.now.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		if t, ok := p.validDate(y, parseMonth(m[1]), d); ok {
			return t, strings.TrimSpace(input[len(m[0]):]), true
		}
	}

	return time.Time{}, input, false
}

// timeOfDay parses "at 2pm", "14:00", "2pm-4pm" or a named time. end is -1
// when no end time was given.
func (p *Parser) timeOfDay(input string) (start, end time.Duration, rest string, ok bool, err error) {
	lower := strings.ToLower(input)
	if strings.HasPrefix(lower, "at ") {
		lower = lower[3:]
		input = input[3:]
	}

	if m := rangeRe.FindStringSubmatch(lower); m != nil {
		// "2-4pm" means 2pm to 4pm.
		startMer := m[3]
		if startMer == "" {
			startMer = m[6]
		}
		start, err := clock(m[1], m[2], startMer)
		if err != nil {
			return 0, 0, input, false, err
		}
		end, err := clock(m[4], m[5], m[6])
		if err != nil {
			return 0, 0, input, false, err
		}
		if end <= start {
			return 0, 0, input, false, ErrTimeOrder
		}
		return start, end, strings.TrimSpace(input[len(m[0]):]), true, nil
	}

	if m := timeRe.FindStringSubmatch(lower); m != nil && (m[2] != "" || m[3] != "") {
		start, err := clock(m[1], m[2], m[3])
		if err != nil {
			return 0, 0, input, false, err
		}
		return start, -1, strings.TrimSpace(input[len(m[0]):]), true, nil
	}

	for _, nt := range namedTimes {
		if hasWord(lower, nt.name) {
			return time.Duration(nt.hour) * time.Hour, -1, strings.TrimSpace(input[len(nt.name):]), true, nil
		}
	}

	return 0, 0, input, false, nil
}

func clock(hour, minute, meridiem string) (time.Duration, error) {
	h, _ := strconv.Atoi(hour)
	m := 0
	if minute != "" {
		m, _ = strconv.Atoi(minute)
	}
	switch meridiem {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %s:%02d", ErrBadDayTime, hour, m)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func (p *Parser) offset(n int, unit string) time.Time {
	switch {
	case strings.HasPrefix(unit, "week"):
		return datemath.AddCalendarDays(p.today(), n*7)
	case strings.HasPrefix(unit, "month"):
		return p.today().AddDate(0, n, 0)
	default:
		return datemath.AddCalendarDays(p.today(), n)
	}
}

// validDate rejects dates time.Date would normalize, such as Feb 30.
func (p *Parser) validDate(y int, m time.Month, d int) (time.Time, bool) {
	t := time.Date(y, m, d, 0, 0, 0, 0, p.loc)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func (p *Parser) nextWeekday(target time.Weekday, skipThisWeek bool) time.Time {
	today := p.today()
	days := int(target - today.Weekday())
	if days <= 0 || skipThisWeek {
		days += 7
	}
	return datemath.AddCalendarDays(today, days)
}

func (p *Parser) today() time.Time {
	y, m, d := p.now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}

// hasWord reports whether s starts with word followed by a boundary.
func hasWord(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	return len(s) == len(word) || s[len(word)] == ' '
}

// ParseWeekday reads a weekday name or abbreviation.
func ParseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sun", "sunday", "0":
		return time.Sunday, true
	case "mon", "monday", "1":
		return time.Monday, true
	case "tue", "tuesday", "2":
		return time.Tuesday, true
	case "wed", "wednesday", "3":
		return time.Wednesday, true
	case "thu", "thursday", "4":
		return time.Thursday, true
	case "fri", "friday", "5":
		return time.Friday, true
	case "sat", "saturday", "6":
		return time.Saturday, true
	}
	return time.Sunday, false
}

func parseWeekday(s string) time.Weekday {
	d, _ := ParseWeekday(s)
	return d
}

func parseMonth(s string) time.Month {
	switch s[:3] {
	case "jan":
		return time.January
	case "feb":
		return time.February
	case "mar":
		return time.March
	case "apr":
		return time.April
	case "may":
		return time.May
	case "jun":
		return time.June
	case "jul":
		return time.July
	case "aug":
		return time.August
	case "sep":
		return time.September
	case "oct":
		return time.October
	case "nov":
		return time.November
	default:
		return time.December
	}
}
