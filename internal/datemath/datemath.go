// Package datemath shifts timestamps by whole calendar days without letting
// daylight-saving transitions move the wall clock.
package datemath

import "time"

// AddCalendarDays returns t with its calendar date advanced by n days and the
// same wall-clock time of day. The result is built from date components, so a
// DST transition between t and the result never shifts the hour.
//
// A wall time repeated by a fall-back transition keeps t's UTC offset when
// that offset is valid there, so n == 0 returns t and shifting into the
// repeated hour and back again returns the original instant. A wall time
// skipped by a spring-forward gap moves forward by the length of the gap
// (02:30 becomes 03:30 on a one-hour gap).
func AddCalendarDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	tod := TimeOfDay(t)
	r := time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	_, want := t.Zone()
	if _, got := r.Zone(); got != want && TimeOfDay(r) == tod {
		alt := r.Add(time.Duration(got-want) * time.Second)
		if _, off := alt.Zone(); off == want && TimeOfDay(alt) == tod && SameDay(alt, r) {
			return alt
		}
	}

	if TimeOfDay(r) != tod {
		// Skipped wall time: read it with the offset in force before the gap,
		// which is the smaller of the offsets on either side.
		_, a := r.Add(-12 * time.Hour).Zone()
		_, b := r.Add(12 * time.Hour).Zone()
		before := min(a, b)
		naive := time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		return naive.Add(-time.Duration(before) * time.Second).In(t.Location())
	}
	return r
}

// DayDistance returns the number of calendar days from a's date to b's date.
// Time of day is ignored; the result is negative when b is before a.
func DayDistance(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// StartOfDay returns midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// TimeOfDay returns the wall-clock offset of t from its own midnight.
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// AtTimeOfDay returns t's date at the wall-clock offset tod.
func AtTimeOfDay(t time.Time, tod time.Duration) time.Time {
	h := int(tod / time.Hour)
	m := int(tod % time.Hour / time.Minute)
	s := int(tod % time.Minute / time.Second)
	ns := int(tod % time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, s, ns, t.Location())
}

// FloorToSlot rounds t's time of day down to a multiple of slot.
func FloorToSlot(t time.Time, slot time.Duration) time.Time {
	if slot <= 0 {
		return t
	}
	tod := TimeOfDay(t)
	return AtTimeOfDay(t, tod-tod%slot)
}

// DaysInclusive returns every calendar date from start through end, one
// midnight per day. An end before start yields start's day alone.
func DaysInclusive(start, end time.Time) []time.Time {
	first := StartOfDay(start)
	n := DayDistance(start, end)
	if n < 0 {
		n = 0
	}
	days := make([]time.Time, 0, n+1)
	for i := 0; i <= n; i++ {
		days = append(days, AddCalendarDays(first, i))
	}
	return days
}
