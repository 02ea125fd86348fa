package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/recurrence"
)

// fileFormat is the on-disk layout of the events file.
type fileFormat struct {
	Events []eventRecord  `yaml:"events,omitempty"`
	Series []seriesRecord `yaml:"series,omitempty"`
}

type eventRecord struct {
	ID     string            `yaml:"id"`
	Title  string            `yaml:"title"`
	Start  string            `yaml:"start"`
	End    string            `yaml:"end"`
	AllDay bool              `yaml:"all_day,omitempty"`
	Attrs  map[string]string `yaml:"attrs,omitempty"`
}

type seriesRecord struct {
	eventRecord `yaml:",inline"`
	RRule       string            `yaml:"rrule"`
	ExDates     []string          `yaml:"exdates,omitempty"`
	Exceptions  []exceptionRecord `yaml:"exceptions,omitempty"`
}

type exceptionRecord struct {
	Date    string `yaml:"date"`
	Kind    string `yaml:"kind"`
	NewDate string `yaml:"new_date,omitempty"`
	Title   string `yaml:"title,omitempty"`
	Start   string `yaml:"start,omitempty"`
	End     string `yaml:"end,omitempty"`
	AllDay  bool   `yaml:"all_day,omitempty"`
}

// Open loads the events file at path and binds the store to it: every
// change is written back. A missing file yields an empty store that creates
// the file on first write.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.path = path
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the events file, replacing the store's contents.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading events file: %w", err)
	}

	fresh, err := decode(data, s.loc)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.replace(fresh)
	s.log.Debug("events file loaded", "path", s.path,
		"events", len(fresh.events), "series", len(fresh.series), "exceptions", len(fresh.exceptions))
	return nil
}

// Save writes the store to its events file.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	data, err := s.encode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating events directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing events file: %w", err)
	}
	return nil
}

func (s *Store) encode() ([]byte, error) {
	s.mu.RLock()
	var f fileFormat
	for _, ev := range s.events {
		f.Events = append(f.Events, toRecord(ev))
	}
	for _, sr := range s.series {
		rec := seriesRecord{
			eventRecord: toRecord(sr.Master()),
			RRule:       sr.RRule,
		}
		for _, ex := range sr.ExDates {
			rec.ExDates = append(rec.ExDates, ex.Format(recurrence.DateLayout))
		}
		for key, exc := range s.exceptions {
			if key.SeriesID == sr.ID {
				rec.Exceptions = append(rec.Exceptions, toExceptionRecord(key, exc))
			}
		}
		sort.Slice(rec.Exceptions, func(i, j int) bool { return rec.Exceptions[i].Date < rec.Exceptions[j].Date })
		f.Series = append(f.Series, rec)
	}
	s.mu.RUnlock()

	sort.Slice(f.Events, func(i, j int) bool { return f.Events[i].ID < f.Events[j].ID })
	sort.Slice(f.Series, func(i, j int) bool { return f.Series[i].ID < f.Series[j].ID })

	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("encoding events: %w", err)
	}
	return data, nil
}

func decode(data []byte, loc *time.Location) (*Store, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	out := New(WithLocation(loc))
	for _, rec := range f.Events {
		ev, err := fromRecord(rec, loc)
		if err != nil {
			return nil, err
		}
		out.events[ev.ID] = ev
	}

	for _, rec := range f.Series {
		master, err := fromRecord(rec.eventRecord, loc)
		if err != nil {
			return nil, err
		}
		sr := Series{
			ID:     master.ID,
			Title:  master.Title,
			Start:  master.Start,
			End:    master.End,
			AllDay: master.AllDay,
			RRule:  rec.RRule,
			Attrs:  master.Attrs,
		}
		for _, ex := range rec.ExDates {
			d, err := time.ParseInLocation(recurrence.DateLayout, ex, loc)
			if err != nil {
				return nil, fmt.Errorf("series %s: exdate %q: %w", sr.ID, ex, err)
			}
			sr.ExDates = append(sr.ExDates, d)
		}
		if _, err := parseRule(sr); err != nil {
			return nil, err
		}
		out.series[sr.ID] = sr

		for _, er := range rec.Exceptions {
			key, exc, err := fromExceptionRecord(sr, er, loc)
			if err != nil {
				return nil, err
			}
			out.exceptions[key] = exc
		}
	}
	return out, nil
}

func toRecord(ev cal.Event) eventRecord {
	return eventRecord{
		ID:     ev.ID,
		Title:  ev.Title,
		Start:  formatWhen(ev.Start, ev.AllDay),
		End:    formatWhen(ev.End, ev.AllDay),
		AllDay: ev.AllDay,
		Attrs:  ev.Attrs,
	}
}

func fromRecord(rec eventRecord, loc *time.Location) (cal.Event, error) {
	if rec.ID == "" {
		return cal.Event{}, fmt.Errorf("%w: record %q has no id", ErrInvalidEvent, rec.Title)
	}
	start, err := parseWhen(rec.Start, loc)
	if err != nil {
		return cal.Event{}, fmt.Errorf("event %s: start: %w", rec.ID, err)
	}
	end, err := parseWhen(rec.End, loc)
	if err != nil {
		return cal.Event{}, fmt.Errorf("event %s: end: %w", rec.ID, err)
	}
	ev := cal.Event{ID: rec.ID, Title: rec.Title, Start: start, End: end, AllDay: rec.AllDay, Attrs: rec.Attrs}
	if err := checkEvent(ev); err != nil {
		return cal.Event{}, err
	}
	return ev, nil
}

func toExceptionRecord(key recurrence.Key, exc recurrence.Exception) exceptionRecord {
	rec := exceptionRecord{Date: key.Date, Kind: exc.Kind.String()}
	if exc.Kind == recurrence.KindRescheduled {
		rec.NewDate = exc.NewDate.Format(recurrence.DateLayout)
		return rec
	}
	rec.Title = exc.Event.Title
	rec.Start = formatWhen(exc.Event.Start, exc.Event.AllDay)
	rec.End = formatWhen(exc.Event.End, exc.Event.AllDay)
	rec.AllDay = exc.Event.AllDay
	return rec
}

func fromExceptionRecord(sr Series, rec exceptionRecord, loc *time.Location) (recurrence.Key, recurrence.Exception, error) {
	key := recurrence.Key{SeriesID: sr.ID, Date: rec.Date}
	orig, err := key.OriginalDate(loc)
	if err != nil {
		return key, recurrence.Exception{}, fmt.Errorf("series %s: exception date %q: %w", sr.ID, rec.Date, err)
	}

	switch rec.Kind {
	case recurrence.KindRescheduled.String():
		d, err := time.ParseInLocation(recurrence.DateLayout, rec.NewDate, loc)
		if err != nil {
			return key, recurrence.Exception{}, fmt.Errorf("series %s: exception %s: new_date: %w", sr.ID, rec.Date, err)
		}
		return key, recurrence.Rescheduled(d), nil
	case recurrence.KindModified.String():
		start, err := parseWhen(rec.Start, loc)
		if err != nil {
			return key, recurrence.Exception{}, fmt.Errorf("series %s: exception %s: start: %w", sr.ID, rec.Date, err)
		}
		end, err := parseWhen(rec.End, loc)
		if err != nil {
			return key, recurrence.Exception{}, fmt.Errorf("series %s: exception %s: end: %w", sr.ID, rec.Date, err)
		}
		title := rec.Title
		if title == "" {
			title = sr.Title
		}
		ev := cal.Event{
			ID:             OccurrenceID(sr.ID, orig),
			Title:          title,
			Start:          start,
			End:            end,
			AllDay:         rec.AllDay,
			SeriesID:       sr.ID,
			OccurrenceDate: orig,
			Attrs:          sr.Attrs,
		}
		return key, recurrence.Modified(ev), nil
	default:
		return key, recurrence.Exception{}, fmt.Errorf("series %s: exception %s: unknown kind %q", sr.ID, rec.Date, rec.Kind)
	}
}

const timedLayout = time.RFC3339

func formatWhen(t time.Time, allDay bool) string {
	if allDay {
		return t.Format(recurrence.DateLayout)
	}
	return t.Format(timedLayout)
}

func parseWhen(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(recurrence.DateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(timedLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	return t.In(loc), nil
}
