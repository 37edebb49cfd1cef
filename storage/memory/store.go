// Package memory is an in-memory storage.Store, mostly for tests and the CLI.
package memory

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Store implements storage.Store using in-memory maps
type Store struct {
	mu        sync.RWMutex
	events    map[uuid.UUID]storage.Event
	overrides map[uuid.UUID][]override.Override // key: event ID
	now       func() time.Time
	logger    *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for creation and deletion stamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new in-memory storage
func New(opts ...Option) *Store {
	s := &Store{
		events:    make(map[uuid.UUID]storage.Event),
		overrides: make(map[uuid.UUID][]override.Override),
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Event operations

func (s *Store) CreateEvent(_ context.Context, event *storage.Event) error {
	if err := event.Prepare(s.now()); err != nil {
		s.logger.Warn("failed to create event: invalid input", "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		s.logger.Warn("failed to create event: already exists", "event_id", event.ID)
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "event already exists",
		}
	}
	s.events[event.ID] = *event

	s.logger.Debug("event created",
		"event_id", event.ID,
		"entries_end", event.EntriesEnd)
	return nil
}

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok || event.DeletedAt.IsPresent() {
		return nil, storage.NotFound(id)
	}
	return &event, nil
}

func (s *Store) ListEventsInRange(_ context.Context, window recurrence.TimeRange, ids ...uuid.UUID) ([]storage.Event, error) {
	if err := window.Validate(); err != nil {
		return nil, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid window", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []storage.Event
	for id, event := range s.events {
		if len(ids) > 0 && !slices.Contains(ids, id) {
			continue
		}
		if event.DeletedAt.IsPresent() || !event.Span().Overlaps(window) {
			continue
		}
		events = append(events, event)
	}
	slices.SortFunc(events, func(a, b storage.Event) int {
		if c := a.Anchor.Start.Compare(b.Anchor.Start); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return events, nil
}

func (s *Store) DeleteEvent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok || event.DeletedAt.IsPresent() {
		return storage.NotFound(id)
	}
	event.DeletedAt = mo.Some(s.now())
	s.events[id] = event

	s.logger.Info("event deleted", "event_id", id)
	return nil
}

// Override operations

func (s *Store) CreateOverride(_ context.Context, o *override.Override) error {
	if err := storage.PrepareOverride(o, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[o.EventID]
	if !ok || event.DeletedAt.IsPresent() {
		return storage.NotFound(o.EventID)
	}
	s.overrides[o.EventID] = append(s.overrides[o.EventID], *o)

	s.logger.Debug("override created",
		"event_id", o.EventID,
		"original", o.Original.String())
	return nil
}

func (s *Store) ListOverrides(_ context.Context, eventIDs []uuid.UUID) ([]override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []override.Override
	for _, id := range eventIDs {
		out = append(out, s.overrides[id]...)
	}
	slices.SortStableFunc(out, func(a, b override.Override) int {
		return a.Original.Start.Compare(b.Original.Start)
	})
	return out, nil
}
