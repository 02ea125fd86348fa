package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/recurrence"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func at(m time.Month, d, h int) time.Time {
	return time.Date(2025, m, d, h, 0, 0, 0, time.UTC)
}

func monthOf(m time.Month) cal.Range {
	return cal.Range{Start: date(m, 1), End: date(m, 1).AddDate(0, 1, 0)}
}

func ids(evs []cal.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.ID)
	}
	return out
}

func weeklyStandup() Series {
	return Series{
		ID:    "standup",
		Title: "Standup",
		Start: at(time.March, 3, 9),
		End:   at(time.March, 3, 10),
		RRule: "FREQ=WEEKLY",
	}
}

func TestAddGetRemove(t *testing.T) {
	s := New(WithLocation(time.UTC))

	ev, err := s.Add(cal.Event{Title: "Dentist", Start: date(time.March, 5), End: date(time.March, 5), AllDay: true})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID, "id not assigned")

	got, err := s.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist", got.Title)

	require.NoError(t, s.Remove(ev.ID))
	_, err = s.Get(ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove(ev.ID), ErrNotFound)
}

func TestAddRejectsInvalidEvents(t *testing.T) {
	s := New()
	_, err := s.Add(cal.Event{Title: "no start"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = s.Add(cal.Event{Start: at(time.March, 5, 10), End: at(time.March, 5, 9)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	sr := weeklyStandup()
	sr.RRule = "FREQ=SOMETIMES"
	_, err = s.AddSeries(sr)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestSeriesExpansion(t *testing.T) {
	s := New(WithLocation(time.UTC))
	sr := weeklyStandup()
	sr.ExDates = []time.Time{date(time.March, 17)}
	_, err := s.AddSeries(sr)
	require.NoError(t, err)

	evs, err := s.QueryEventsOverlapping(monthOf(time.March))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"standup@2025-03-03",
		"standup@2025-03-10",
		"standup@2025-03-24",
		"standup@2025-03-31",
	}, ids(evs))

	for _, ev := range evs {
		assert.True(t, ev.IsOccurrence(), "%s is not an occurrence", ev.ID)
		assert.Equal(t, time.Hour, ev.Duration())
		assert.Equal(t, 9, ev.Start.Hour())
	}
}

func TestSeriesKeepsWallClockAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	s := New(WithLocation(ny))
	_, err = s.AddSeries(Series{
		ID:    "gym",
		Start: time.Date(2025, 3, 3, 9, 0, 0, 0, ny),
		End:   time.Date(2025, 3, 3, 10, 0, 0, 0, ny),
		RRule: "FREQ=WEEKLY",
	})
	require.NoError(t, err)

	evs, err := s.QueryEventsOverlapping(cal.Range{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, ny),
		End:   time.Date(2025, 3, 15, 0, 0, 0, 0, ny),
	})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	for _, ev := range evs {
		assert.Equal(t, 9, ev.Start.In(ny).Hour(), "%s", ev.ID)
		assert.Equal(t, 10, ev.End.In(ny).Hour(), "%s", ev.ID)
	}
}

func TestModifiedExceptionVisibleOutsideOriginalRange(t *testing.T) {
	s := New(WithLocation(time.UTC))
	_, err := s.AddSeries(Series{
		ID:     "rent",
		Title:  "Rent",
		Start:  date(time.February, 1),
		End:    date(time.February, 1),
		AllDay: true,
		RRule:  "FREQ=MONTHLY",
	})
	require.NoError(t, err)

	moved := cal.Event{
		ID:             OccurrenceID("rent", date(time.February, 1)),
		Title:          "Rent",
		Start:          date(time.January, 22),
		End:            date(time.January, 23),
		AllDay:         true,
		SeriesID:       "rent",
		OccurrenceDate: date(time.February, 1),
	}
	require.NoError(t, s.CommitEvent(moved))

	jan, err := s.QueryEventsOverlapping(cal.Range{Start: date(time.January, 1), End: date(time.January, 31)})
	require.NoError(t, err)
	require.Equal(t, []string{"rent@2025-02-01"}, ids(jan))
	assert.True(t, jan[0].Start.Equal(date(time.January, 22)))

	feb, err := s.QueryEventsOverlapping(monthOf(time.February))
	require.NoError(t, err)
	assert.Empty(t, feb, "moved occurrence still shown on its original date")

	mar, err := s.QueryEventsOverlapping(monthOf(time.March))
	require.NoError(t, err)
	assert.Equal(t, []string{"rent@2025-03-01"}, ids(mar))
}

func TestRescheduledExceptionKeepsSeriesDuration(t *testing.T) {
	s := New(WithLocation(time.UTC))
	_, err := s.AddSeries(weeklyStandup())
	require.NoError(t, err)

	key := recurrence.KeyFor("standup", date(time.March, 10))
	require.NoError(t, s.WriteRecurrenceException(key, recurrence.Rescheduled(date(time.March, 12))))

	ev, err := s.Get("standup@2025-03-10")
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(at(time.March, 12, 9)), "start %v", ev.Start)
	assert.True(t, ev.End.Equal(at(time.March, 12, 10)), "end %v", ev.End)

	evs, err := s.QueryEventsOverlapping(cal.Range{Start: date(time.March, 10), End: date(time.March, 11)})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestNewerExceptionReplacesOlder(t *testing.T) {
	s := New(WithLocation(time.UTC))
	_, err := s.AddSeries(weeklyStandup())
	require.NoError(t, err)

	occ, err := s.Get("standup@2025-03-10")
	require.NoError(t, err)

	first := occ.WithRange(cal.Range{Start: at(time.March, 11, 9), End: at(time.March, 11, 12)})
	require.NoError(t, s.CommitEvent(first))
	second := occ.WithRange(cal.Range{Start: at(time.March, 13, 9), End: at(time.March, 13, 12)})
	require.NoError(t, s.CommitEvent(second))

	got, err := s.Get("standup@2025-03-10")
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(at(time.March, 13, 9)))
	assert.Equal(t, 3*time.Hour, got.Duration(), "resize lost by a later move")
}

func TestExceptionForUnknownSeries(t *testing.T) {
	s := New()
	err := s.WriteRecurrenceException(recurrence.KeyFor("nope", date(time.March, 1)), recurrence.Rescheduled(date(time.March, 2)))
	assert.ErrorIs(t, err, ErrUnknownSeries)
}

func TestGetOccurrenceNotOnRule(t *testing.T) {
	s := New(WithLocation(time.UTC))
	_, err := s.AddSeries(weeklyStandup())
	require.NoError(t, err)

	_, err = s.Get("standup@2025-03-11")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("standup@bogus")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitSeriesMasterMovesSeries(t *testing.T) {
	s := New(WithLocation(time.UTC))
	sr, err := s.AddSeries(weeklyStandup())
	require.NoError(t, err)

	master := sr.Master()
	master.SeriesID = ""
	require.NoError(t, s.CommitEvent(master.WithRange(cal.Range{Start: at(time.March, 4, 9), End: at(time.March, 4, 10)})))

	evs, err := s.QueryEventsOverlapping(cal.Range{Start: date(time.March, 1), End: date(time.March, 8)})
	require.NoError(t, err)
	assert.Equal(t, []string{"standup@2025-03-04"}, ids(evs))
	assert.Empty(t, s.Events(), "series master stored as a single event")
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	s, err := Open(path, WithLocation(time.UTC))
	require.NoError(t, err)

	_, err = s.Add(cal.Event{ID: "trip", Title: "Trip", Start: date(time.March, 5), End: date(time.March, 7), AllDay: true,
		Attrs: map[string]string{"color": "blue"}})
	require.NoError(t, err)
	_, err = s.Add(cal.Event{ID: "lunch", Title: "Lunch", Start: at(time.March, 6, 12), End: at(time.March, 6, 13)})
	require.NoError(t, err)
	sr := weeklyStandup()
	sr.ExDates = []time.Time{date(time.March, 24)}
	_, err = s.AddSeries(sr)
	require.NoError(t, err)
	require.NoError(t, s.WriteRecurrenceException(recurrence.KeyFor("standup", date(time.March, 10)),
		recurrence.Rescheduled(date(time.March, 11))))
	occ, err := s.Get("standup@2025-03-17")
	require.NoError(t, err)
	require.NoError(t, s.CommitEvent(occ.WithRange(cal.Range{Start: at(time.March, 18, 14), End: at(time.March, 18, 16)})))

	want, err := s.QueryEventsOverlapping(monthOf(time.March))
	require.NoError(t, err)

	reopened, err := Open(path, WithLocation(time.UTC))
	require.NoError(t, err)
	got, err := reopened.QueryEventsOverlapping(monthOf(time.March))
	require.NoError(t, err)

	require.Equal(t, ids(want), ids(got))
	for i := range want {
		assert.True(t, want[i].Start.Equal(got[i].Start), "%s start", want[i].ID)
		assert.True(t, want[i].End.Equal(got[i].End), "%s end", want[i].ID)
		assert.Equal(t, want[i].AllDay, got[i].AllDay, "%s all-day", want[i].ID)
	}
	trip, err := reopened.Get("trip")
	require.NoError(t, err)
	assert.Equal(t, "blue", trip.Attrs["color"])
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Events())
}

func TestOpenRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events:\n  - id: x\n    start: tomorrow\n    end: later\n"), 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestICSRoundTrip(t *testing.T) {
	s := New(WithLocation(time.UTC))
	_, err := s.Add(cal.Event{ID: "trip", Title: "Trip", Start: date(time.March, 5), End: date(time.March, 7), AllDay: true})
	require.NoError(t, err)
	_, err = s.Add(cal.Event{ID: "lunch", Title: "Lunch", Start: at(time.March, 6, 12), End: at(time.March, 6, 13)})
	require.NoError(t, err)
	_, err = s.AddSeries(weeklyStandup())
	require.NoError(t, err)
	occ, err := s.Get("standup@2025-03-10")
	require.NoError(t, err)
	require.NoError(t, s.CommitEvent(occ.WithRange(cal.Range{Start: at(time.March, 12, 15), End: at(time.March, 12, 16)})))

	var buf bytes.Buffer
	require.NoError(t, s.ExportICS(&buf))
	assert.True(t, strings.Contains(buf.String(), "RRULE:FREQ=WEEKLY"))
	assert.True(t, strings.Contains(buf.String(), "RECURRENCE-ID"))

	imported := New(WithLocation(time.UTC))
	n, err := imported.ImportICS(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	want, err := s.QueryEventsOverlapping(monthOf(time.March))
	require.NoError(t, err)
	got, err := imported.QueryEventsOverlapping(monthOf(time.March))
	require.NoError(t, err)
	require.Equal(t, ids(want), ids(got))
	for i := range want {
		assert.True(t, want[i].Start.Equal(got[i].Start), "%s start", want[i].ID)
		assert.True(t, want[i].End.Equal(got[i].End), "%s end", want[i].ID)
	}

	trip, err := imported.Get("trip")
	require.NoError(t, err)
	assert.True(t, trip.AllDay)
	assert.True(t, trip.End.Equal(date(time.March, 7)), "inclusive end lost: %v", trip.End)
}

func TestWatcherReloadsOnExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	s, err := Open(path, WithLocation(time.UTC))
	require.NoError(t, err)
	_, err = s.Add(cal.Event{ID: "a", Title: "A", Start: date(time.March, 5), End: date(time.March, 5), AllDay: true})
	require.NoError(t, err)

	changed := make(chan error, 4)
	w, err := Watch(s, func(err error) { changed <- err }, nil)
	require.NoError(t, err)
	defer w.Close()

	edited := "events:\n  - id: b\n    title: B\n    start: \"2025-03-09\"\n    end: \"2025-03-09\"\n    all_day: true\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	select {
	case err := <-changed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after external edit")
	}

	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
	b, err := s.Get("b")
	require.NoError(t, err)
	assert.True(t, b.Start.Equal(date(time.March, 9)))
}
