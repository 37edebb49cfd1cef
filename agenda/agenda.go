// Package agenda expands stored events over a window and applies their overrides.
package agenda

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

// EventInfo is the per-event metadata returned alongside entries.
type EventInfo struct {
	ID           uuid.UUID
	Name         string
	Description  string
	Rule         mo.Option[recurrence.Rule]
	EntriesStart time.Time
	EntriesEnd   time.Time
}

// Events is the result of an agenda query.
type Events struct {
	Events  map[uuid.UUID]EventInfo
	Entries []override.Entry
}

// Merge folds other into e, keeping entries sorted.
func (e *Events) Merge(other *Events) {
	if other == nil {
		return
	}
	if e.Events == nil {
		e.Events = make(map[uuid.UUID]EventInfo, len(other.Events))
	}
	maps.Copy(e.Events, other.Events)
	e.Entries = append(e.Entries, other.Entries...)
	sortEntries(e.Entries)
}

// Describe returns the name and description of an entry after its patch.
func (e *Events) Describe(entry override.Entry) (string, string) {
	info := e.Events[entry.EventID]
	return entry.Describe(info.Name, info.Description)
}

func sortEntries(entries []override.Entry) {
	slices.SortStableFunc(entries, func(a, b override.Entry) int {
		if c := a.Window().Start.Compare(b.Window().Start); c != 0 {
			return c
		}
		if c := slices.Compare(a.EventID[:], b.EventID[:]); c != 0 {
			return c
		}
		return a.Original.Start.Compare(b.Original.Start)
	})
}

// Service answers agenda queries against a store.
type Service struct {
	store       storage.Store
	engine      *recurrence.Engine
	logger      *slog.Logger
	parallelism int
}

// Option represents a configuration option for the Service
type Option func(*Service)

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithParallelism bounds how many events are expanded at once
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// New creates a service. A nil engine gets a default one.
func New(store storage.Store, engine *recurrence.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	s := &Service{
		store:       store,
		engine:      engine,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries returns every entry of the selected events that takes place in
// window, deleted ones included.
func (s *Service) Entries(ctx context.Context, window recurrence.TimeRange, ids ...uuid.UUID) (*Events, error) {
	events, err := s.store.ListEventsInRange(ctx, window, ids...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	eventIDs := make([]uuid.UUID, len(events))
	for i, ev := range events {
		eventIDs[i] = ev.ID
	}
	overrides, err := s.store.ListOverrides(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("listing overrides: %w", err)
	}
	groups := override.Group(overrides)

	results := make([][]override.Entry, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, ev := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := s.expand(ev, window, groups[ev.ID])
			if err != nil {
				return fmt.Errorf("expanding event %s: %w", ev.ID, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Events{Events: make(map[uuid.UUID]EventInfo, len(events))}
	for i, ev := range events {
		out.Events[ev.ID] = EventInfo{
			ID:           ev.ID,
			Name:         ev.Name,
			Description:  ev.Description,
			Rule:         ev.Rule,
			EntriesStart: ev.Anchor.Start,
			EntriesEnd:   ev.EntriesEnd,
		}
		out.Entries = append(out.Entries, results[i]...)
	}
	sortEntries(out.Entries)

	s.logger.Debug("agenda entries resolved",
		"window", window.String(),
		"events", len(events),
		"entries", len(out.Entries))
	return out, nil
}

// expand resolves one event, including occurrences just outside window that
// an override moved into it.
func (s *Service) expand(ev storage.Event, window recurrence.TimeRange, overrides []override.Override) ([]override.Entry, error) {
	rule, ok := ev.Rule.Get()
	if !ok {
		if ev.Anchor.Overlaps(window) {
			return []override.Entry{override.Resolve(ev.ID, ev.Anchor, overrides)}, nil
		}
		if entry, ok := override.Edge(ev.ID, ev.Anchor, window, overrides); ok {
			return []override.Entry{entry}, nil
		}
		return nil, nil
	}

	occurrences, err := s.engine.Expand(ev.Anchor, rule, window)
	if err != nil {
		return nil, err
	}
	entries := override.Merge(ev.ID, occurrences, overrides)
	if len(overrides) == 0 {
		return entries, nil
	}

	prev, err := s.engine.Prev(ev.Anchor, rule, window.Start.Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Next(ev.Anchor, rule, window.End)
	if err != nil {
		return nil, err
	}
	for _, occ := range []mo.Option[recurrence.TimeRange]{prev, next} {
		o, ok := occ.Get()
		if !ok {
			continue
		}
		if entry, ok := override.Edge(ev.ID, o, window, overrides); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
