package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func newStore() *Store {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func hourAt(y int, m time.Month, d, h int) recurrence.TimeRange {
	start := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return recurrence.NewTimeRange(start, start.Add(time.Hour))
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	event := &storage.Event{
		Name:   "standup",
		Anchor: hourAt(2023, 3, 1, 10),
		Rule:   mo.Some(recurrence.Daily(1, recurrence.Count(4))),
	}
	require.NoError(t, s.CreateEvent(ctx, event))
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, fixedNow, event.CreatedAt)
	assert.Equal(t, time.Date(2023, 3, 5, 11, 0, 0, 0, time.UTC), event.EntriesEnd)

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, *event, *got)

	err = s.CreateEvent(ctx, event)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestCreateEventInvalid(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	tests := []struct {
		name  string
		event storage.Event
	}{
		{"backwards anchor", storage.Event{Anchor: recurrence.NewTimeRange(fixedNow, fixedNow.Add(-time.Hour))}},
		{"zero interval", storage.Event{
			Anchor: hourAt(2023, 3, 1, 10),
			Rule:   mo.Some(recurrence.Daily(0, recurrence.Count(1))),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateEvent(ctx, &tt.event)
			assert.ErrorIs(t, err, storage.ErrInvalidInput)
		})
	}
}

func TestSingleEventEntriesEnd(t *testing.T) {
	s := newStore()
	event := &storage.Event{Anchor: hourAt(2023, 3, 1, 10)}
	require.NoError(t, s.CreateEvent(context.Background(), event))
	assert.Equal(t, event.Anchor.End, event.EntriesEnd)
}

func TestListEventsInRange(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	march := &storage.Event{
		Name:   "march",
		Anchor: hourAt(2023, 3, 1, 10),
		Rule:   mo.Some(recurrence.Daily(1, recurrence.Until(time.Date(2023, 3, 31, 23, 0, 0, 0, time.UTC)))),
	}
	once := &storage.Event{Name: "once", Anchor: hourAt(2023, 5, 1, 9)}
	gone := &storage.Event{Name: "gone", Anchor: hourAt(2023, 3, 2, 9)}
	for _, e := range []*storage.Event{march, once, gone} {
		require.NoError(t, s.CreateEvent(ctx, e))
	}
	require.NoError(t, s.DeleteEvent(ctx, gone.ID))

	tests := []struct {
		name   string
		window recurrence.TimeRange
		ids    []uuid.UUID
		want   []string
	}{
		{"march only", recurrence.NewTimeRange(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2023, 3, 16, 0, 0, 0, 0, time.UTC)), nil, []string{"march"}},
		{"both", recurrence.NewTimeRange(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), nil, []string{"march", "once"}},
		{"filtered", recurrence.NewTimeRange(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), []uuid.UUID{once.ID}, []string{"once"}},
		{"after everything", recurrence.NewTimeRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)), nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.ListEventsInRange(ctx, tt.window, tt.ids...)
			require.NoError(t, err)
			var names []string
			for _, e := range events {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := s.ListEventsInRange(ctx, recurrence.NewTimeRange(fixedNow, fixedNow.Add(-time.Second)))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	event := &storage.Event{Anchor: hourAt(2023, 3, 1, 10)}
	require.NoError(t, s.CreateEvent(ctx, event))
	require.NoError(t, s.DeleteEvent(ctx, event.ID))

	_, err := s.GetEvent(ctx, event.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteEvent(ctx, event.ID), storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteEvent(ctx, uuid.New()), storage.ErrNotFound)
}

func TestOverrides(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	event := &storage.Event{
		Anchor: hourAt(2023, 3, 1, 10),
		Rule:   mo.Some(recurrence.Daily(1, recurrence.Count(9))),
	}
	require.NoError(t, s.CreateEvent(ctx, event))

	late := &override.Override{EventID: event.ID, Original: hourAt(2023, 3, 5, 10), DeletedAt: mo.Some(fixedNow)}
	early := &override.Override{EventID: event.ID, Original: hourAt(2023, 3, 2, 10), Replacement: mo.Some(hourAt(2023, 3, 2, 14))}
	require.NoError(t, s.CreateOverride(ctx, late))
	require.NoError(t, s.CreateOverride(ctx, early))
	assert.Equal(t, fixedNow, early.CreatedAt)

	got, err := s.ListOverrides(ctx, []uuid.UUID{event.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, *early, got[0])
	assert.Equal(t, *late, got[1])

	none, err := s.ListOverrides(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, none)

	orphan := &override.Override{EventID: uuid.New(), Original: hourAt(2023, 3, 2, 10)}
	assert.ErrorIs(t, s.CreateOverride(ctx, orphan), storage.ErrNotFound)

	invalid := &override.Override{EventID: event.ID, Original: recurrence.NewTimeRange(fixedNow, fixedNow.Add(-time.Hour))}
	assert.ErrorIs(t, s.CreateOverride(ctx, invalid), storage.ErrInvalidInput)
}

func TestErrorIs(t *testing.T) {
	err := storage.NotFound(uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotErrorIs(t, err, storage.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "not_found")
}
