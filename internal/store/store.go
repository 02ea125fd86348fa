// Package store keeps single events and recurring series, answers range
// queries with recurrences expanded and exceptions applied, and persists to a
// YAML events file.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwarden/skuld/internal/cal"
	"github.com/cwarden/skuld/internal/recurrence"
)

var (
	ErrNotFound      = errors.New("event not found")
	ErrUnknownSeries = errors.New("unknown series")
	ErrInvalidEvent  = errors.New("invalid event")
)

// occurrenceSep joins a series ID and an occurrence date into an event ID.
const occurrenceSep = "@"

// Series is a recurring event. Start and End describe the first occurrence;
// for all-day series End is the inclusive last day.
type Series struct {
	ID      string
	Title   string
	Start   time.Time
	End     time.Time
	AllDay  bool
	RRule   string
	ExDates []time.Time
	Attrs   map[string]string
}

// Master returns the series as an event, for applying exceptions.
func (s Series) Master() cal.Event {
	return cal.Event{
		ID:       s.ID,
		Title:    s.Title,
		Start:    s.Start,
		End:      s.End,
		AllDay:   s.AllDay,
		SeriesID: s.ID,
		Attrs:    s.Attrs,
	}
}

// OccurrenceID returns the event ID of the occurrence of seriesID on date d.
func OccurrenceID(seriesID string, d time.Time) string {
	return seriesID + occurrenceSep + d.Format(recurrence.DateLayout)
}

// Store is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	events     map[string]cal.Event
	series     map[string]Series
	exceptions map[recurrence.Key]recurrence.Exception

	path string // events file; empty keeps the store in memory
	loc  *time.Location
	log  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLocation sets the zone dates in the events file are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		events:     make(map[string]cal.Event),
		series:     make(map[string]Series),
		exceptions: make(map[recurrence.Key]recurrence.Exception),
		loc:        time.Local,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the events file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Add stores a single event, assigning an ID when it has none.
func (s *Store) Add(ev cal.Event) (cal.Event, error) {
	if err := checkEvent(ev); err != nil {
		return cal.Event{}, err
	}
	ev = ev.Clone()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.events[ev.ID] = ev
	s.mu.Unlock()
	return ev, s.persist()
}

// AddSeries stores a recurring series, assigning an ID when it has none.
func (s *Store) AddSeries(sr Series) (Series, error) {
	if err := checkEvent(sr.Master()); err != nil {
		return Series{}, err
	}
	if _, err := parseRule(sr); err != nil {
		return Series{}, err
	}
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.series[sr.ID] = sr
	s.mu.Unlock()
	return sr, s.persist()
}

// Remove deletes a single event or a whole series with its exceptions.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	_, isEvent := s.events[id]
	_, isSeries := s.series[id]
	switch {
	case isEvent:
		delete(s.events, id)
	case isSeries:
		delete(s.series, id)
		for key := range s.exceptions {
			if key.SeriesID == id {
				delete(s.exceptions, key)
			}
		}
	}
	s.mu.Unlock()
	if !isEvent && !isSeries {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.persist()
}

// Get returns the event with id. Occurrence IDs resolve through the series
// with any exception applied.
func (s *Store) Get(id string) (cal.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ev, ok := s.events[id]; ok {
		return ev.Clone(), nil
	}
	seriesID, date, ok := strings.Cut(id, occurrenceSep)
	if !ok {
		return cal.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sr, ok := s.series[seriesID]
	if !ok {
		return cal.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	key := recurrence.Key{SeriesID: seriesID, Date: date}
	orig, err := key.OriginalDate(sr.Start.Location())
	if err != nil {
		return cal.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	occ, ok := s.occurrenceOn(sr, orig)
	if !ok {
		return cal.Event{}, fmt.Errorf("%w: %s does not occur on %s", ErrNotFound, seriesID, date)
	}
	return occ, nil
}

// Events returns every single event, ordered by start.
func (s *Store) Events() []cal.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cal.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Clone())
	}
	sortEvents(out)
	return out
}

// AllSeries returns every series, ordered by ID.
func (s *Store) AllSeries() []Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Series, 0, len(s.series))
	for _, sr := range s.series {
		out = append(out, sr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Exception returns the exception stored under key.
func (s *Store) Exception(key recurrence.Key) (recurrence.Exception, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exc, ok := s.exceptions[key]
	return exc, ok
}

// QueryEventsOverlapping returns the events whose span overlaps r: single
// events, expanded occurrences, and rescheduled occurrences that now overlap
// r even when their original date lies outside it.
func (s *Store) QueryEventsOverlapping(r cal.Range) ([]cal.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []cal.Event
	for _, ev := range s.events {
		if ev.Span().Overlaps(r) {
			out = append(out, ev.Clone())
		}
	}

	for _, sr := range s.series {
		occs, err := s.expand(sr, r)
		if err != nil {
			s.log.Warn("skipping series", "series", sr.ID, "error", err)
			continue
		}
		out = append(out, occs...)
	}

	sortEvents(out)
	return out, nil
}

// CommitEvent stores ev. An occurrence is written as an exception on its
// series; a series master moves the whole series; anything else is an
// upsert of a single event.
func (s *Store) CommitEvent(ev cal.Event) error {
	if err := checkEvent(ev); err != nil {
		return err
	}
	if ev.IsOccurrence() {
		_, exc, _ := recurrence.Resolve(ev)
		return s.WriteRecurrenceException(recurrence.KeyFor(ev.SeriesID, ev.OccurrenceDate), exc)
	}

	s.mu.Lock()
	if sr, ok := s.series[ev.ID]; ok {
		sr.Title = ev.Title
		sr.Start = ev.Start
		sr.End = ev.End
		sr.AllDay = ev.AllDay
		s.series[ev.ID] = sr
	} else {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		s.events[ev.ID] = ev.Clone()
	}
	s.mu.Unlock()

	s.log.Debug("event committed", "event", ev.ID, "start", ev.Start, "end", ev.End)
	return s.persist()
}

// WriteRecurrenceException stores exc for an occurrence of an existing
// series, replacing any earlier exception for the same date.
func (s *Store) WriteRecurrenceException(key recurrence.Key, exc recurrence.Exception) error {
	s.mu.Lock()
	if _, ok := s.series[key.SeriesID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSeries, key.SeriesID)
	}
	if exc.Kind == recurrence.KindModified {
		exc.Event = exc.Event.Clone()
	}
	s.exceptions[key] = exc
	s.mu.Unlock()

	s.log.Debug("exception written", "key", key.String(), "kind", exc.Kind.String())
	return s.persist()
}

// replace swaps in freshly loaded contents.
func (s *Store) replace(o *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = o.events
	s.series = o.series
	s.exceptions = o.exceptions
}

func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	return s.Save()
}

func checkEvent(ev cal.Event) error {
	if ev.Start.IsZero() {
		return fmt.Errorf("%w: %q has no start", ErrInvalidEvent, ev.ID)
	}
	if ev.End.Before(ev.Start) {
		return fmt.Errorf("%w: %q ends before it starts", ErrInvalidEvent, ev.ID)
	}
	return nil
}

func sortEvents(evs []cal.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].Start.Equal(evs[j].Start) {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}
