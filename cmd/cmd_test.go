package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/skuld/internal/store"
)

const fixture = `events:
  - id: offsite
    title: Offsite
    start: "2025-03-05"
    end: "2025-03-06"
    all_day: true
  - id: review
    title: Review
    start: "2025-03-05 09:00"
    end: "2025-03-05 10:00"
series:
  - id: standup
    title: Standup
    start: "2025-03-03 09:00"
    end: "2025-03-03 09:15"
    rrule: FREQ=DAILY;COUNT=5
`

type env struct {
	config string
	events string
}

func setup(t *testing.T, config string) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		config: filepath.Join(dir, "skuldrc"),
		events: filepath.Join(dir, "events.yaml"),
	}
	require.NoError(t, os.WriteFile(e.config, []byte(config), 0o644))
	require.NoError(t, os.WriteFile(e.events, []byte(fixture), 0o644))
	return e
}

func (e env) run(args ...string) (string, error) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.config, "--file", e.events}, args...))
	err := root.Execute()
	return out.String(), err
}

func (e env) store(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(e.events)
	require.NoError(t, err)
	return st
}

func date(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2025, month, day, hour, minute, 0, 0, time.Local)
}

func TestList(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("list", "--from", "2025-03-05")
	require.NoError(t, err)

	assert.Contains(t, out, "Events for Mar 5, 2025:")
	assert.Contains(t, out, "Offsite")
	assert.Contains(t, out, "09:00-10:00")
	assert.Contains(t, out, "Review")
	assert.Contains(t, out, "(standup@2025-03-05)")
	assert.NotContains(t, out, "standup@2025-03-04")
}

func TestListRange(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("list", "--from", "2025-03-07", "--to", "2025-03-08")
	require.NoError(t, err)
	assert.Contains(t, out, "standup@2025-03-07")
	assert.Contains(t, out, "Events for Mar 8, 2025:\n  No events found.")

	_, err = e.run("list", "--from", "2025-03-08", "--to", "2025-03-07")
	assert.Error(t, err)
}

func TestMoveAllDay(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("move", "offsite", "--days", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `Moved "Offsite" to Mar 7, 2025`)

	ev, err := e.store(t).Get("offsite")
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(date(time.March, 7, 0, 0)), "start %v", ev.Start)
	assert.True(t, ev.End.Equal(date(time.March, 8, 0, 0)), "end %v", ev.End)
}

func TestMoveEdge(t *testing.T) {
	e := setup(t, "")

	_, err := e.run("move", "offsite", "--days", "1", "--edge", "end")
	require.NoError(t, err)

	ev, err := e.store(t).Get("offsite")
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(date(time.March, 5, 0, 0)), "start %v", ev.Start)
	assert.True(t, ev.End.Equal(date(time.March, 7, 0, 0)), "end %v", ev.End)
}

func TestMoveOntoBlockedDay(t *testing.T) {
	e := setup(t, "set blocked_weekdays saturday,sunday\n")

	_, err := e.run("move", "offsite", "--days", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not moved: blocked")

	ev, err := e.store(t).Get("offsite")
	require.NoError(t, err)
	assert.True(t, ev.Start.Equal(date(time.March, 5, 0, 0)), "start %v", ev.Start)
}

func TestMoveOccurrence(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("move", "standup@2025-03-05", "--slots", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `Moved this occurrence of "Standup"`)

	st := e.store(t)
	moved, err := st.Get("standup@2025-03-05")
	require.NoError(t, err)
	assert.True(t, moved.Start.Equal(date(time.March, 5, 10, 0)), "start %v", moved.Start)
	assert.True(t, moved.End.Equal(date(time.March, 5, 10, 15)), "end %v", moved.End)

	other, err := st.Get("standup@2025-03-04")
	require.NoError(t, err)
	assert.True(t, other.Start.Equal(date(time.March, 4, 9, 0)), "start %v", other.Start)
}

func TestMoveErrors(t *testing.T) {
	e := setup(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"no step", []string{"move", "offsite"}},
		{"all-day by slots", []string{"move", "offsite", "--slots", "1"}},
		{"unknown event", []string{"move", "nope", "--days", "1"}},
		{"bad edge", []string{"move", "offsite", "--days", "1", "--edge", "middle"}},
		{"days and slots", []string{"move", "review", "--days", "1", "--slots", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestAdd(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("add", "2025-03-14", "planning", "day")
	require.NoError(t, err)
	assert.Contains(t, out, `Added "planning day"`)

	var found bool
	for _, ev := range e.store(t).Events() {
		if ev.Title == "planning day" {
			found = true
			assert.True(t, ev.AllDay)
			assert.True(t, ev.Start.Equal(date(time.March, 14, 0, 0)), "start %v", ev.Start)
		}
	}
	assert.True(t, found, "added event not in events file")
}

func TestExport(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("export")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Offsite")
	assert.Contains(t, out, "RRULE:FREQ=DAILY;COUNT=5")
}

func TestVersion(t *testing.T) {
	e := setup(t, "")

	out, err := e.run("version")
	require.NoError(t, err)
	assert.Equal(t, "Skuld dev\n", out)
}
