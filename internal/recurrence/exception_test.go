package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/datemath"
)

type memWriter struct {
	exceptions map[Key]Exception
	writes     int
	err        error
}

func (w *memWriter) WriteRecurrenceException(key Key, exc Exception) error {
	if w.err != nil {
		return w.err
	}
	if w.exceptions == nil {
		w.exceptions = make(map[Key]Exception)
	}
	w.exceptions[key] = exc
	w.writes++
	return nil
}

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

// weekly standup master: one day long.
var master = cal.Event{
	ID:       "standup",
	Title:    "Standup",
	Start:    date(time.January, 4),
	End:      date(time.January, 4),
	AllDay:   true,
	SeriesID: "standup",
}

func occurrence(d time.Time) cal.Event {
	ev := master.Clone()
	ev.ID = "standup@" + d.Format(DateLayout)
	ev.Start = d
	ev.End = d.Add(master.Duration())
	ev.OccurrenceDate = d
	return ev
}

func TestResolveAlwaysWritesModified(t *testing.T) {
	occ := occurrence(date(time.February, 1))
	moved := occ.WithRange(cal.Range{Start: date(time.February, 3), End: date(time.February, 3)})

	key, exc, ok := Resolve(moved)
	require.True(t, ok)
	assert.Equal(t, Key{SeriesID: "standup", Date: "2025-02-01"}, key)
	assert.Equal(t, KindModified, exc.Kind)
	assert.True(t, exc.Event.Start.Equal(date(time.February, 3)))
}

func TestResolveRejectsNonOccurrence(t *testing.T) {
	_, _, ok := Resolve(cal.Event{ID: "single"})
	assert.False(t, ok)

	r := NewResolver(&memWriter{}, nil)
	_, err := r.Commit(cal.Event{ID: "single"})
	assert.True(t, errors.Is(err, ErrNotOccurrence))
}

func TestMovingResizedOccurrenceKeepsDuration(t *testing.T) {
	w := &memWriter{}
	r := NewResolver(w, nil)

	// First edit: resize the Feb 1 occurrence to run through Feb 3.
	occ := occurrence(date(time.February, 1))
	resized := occ.WithRange(cal.Range{Start: occ.Start, End: date(time.February, 3)})
	_, err := r.Commit(resized)
	require.NoError(t, err)

	// The occurrence the user now drags is what the store returns for it.
	key := KeyFor("standup", date(time.February, 1))
	current := w.exceptions[key].Apply(master, occ.Start)
	require.Equal(t, 2*24*time.Hour, current.Duration())

	// Second edit: move it forward two days.
	moved := current.WithRange(cal.Range{
		Start: datemath.AddCalendarDays(current.Start, 2),
		End:   datemath.AddCalendarDays(current.End, 2),
	})
	_, err = r.Commit(moved)
	require.NoError(t, err)

	final := w.exceptions[key]
	assert.Equal(t, KindModified, final.Kind)
	assert.Equal(t, 2*24*time.Hour, final.Event.Duration(), "move must not revert the earlier resize")
	assert.True(t, final.Event.Start.Equal(date(time.February, 3)))
	assert.Equal(t, 2, w.writes)
}

func TestRescheduledWouldLoseResize(t *testing.T) {
	// Documents why Resolve never emits Rescheduled.
	occStart := date(time.February, 1)
	got := Rescheduled(date(time.February, 3)).Apply(master, occStart)
	assert.Equal(t, master.Duration(), got.Duration())
	assert.True(t, got.Start.Equal(date(time.February, 3)))
	assert.True(t, got.OccurrenceDate.Equal(occStart))
}

func TestModifiedOverlapsUsesSnapshot(t *testing.T) {
	occ := occurrence(date(time.February, 1))
	resized := occ.WithRange(cal.Range{Start: date(time.January, 22), End: date(time.February, 1)})
	exc := Modified(resized)

	january := cal.Range{Start: date(time.January, 1), End: date(time.January, 31)}
	assert.True(t, exc.Overlaps(january))

	march := cal.Range{Start: date(time.March, 1), End: date(time.March, 31)}
	assert.False(t, exc.Overlaps(march))

	assert.False(t, Rescheduled(date(time.January, 10)).Overlaps(january))
}

func TestCommitWrapsWriterError(t *testing.T) {
	boom := errors.New("disk full")
	r := NewResolver(&memWriter{err: boom}, nil)
	_, err := r.Commit(occurrence(date(time.February, 8)))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestModifiedSnapshotIsDetached(t *testing.T) {
	ev := occurrence(date(time.February, 1))
	ev.Attrs = map[string]string{"room": "A"}
	exc := Modified(ev)
	ev.Attrs["room"] = "B"
	assert.Equal(t, "A", exc.Event.Attrs["room"])
}
