package agenda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/cyp0633/librecur/storage/memory"
	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(m time.Month, d, h int) time.Time {
	return time.Date(2023, m, d, h, 0, 0, 0, time.UTC)
}

func hour(start time.Time) recurrence.TimeRange {
	return recurrence.NewTimeRange(start, start.Add(time.Hour))
}

type fixture struct {
	store   *memory.Store
	daily   *storage.Event
	single  *storage.Event
	weekly  *storage.Event
	service *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	daily := &storage.Event{
		Name:   "standup",
		Anchor: hour(at(3, 1, 10)),
		Rule:   mo.Some(recurrence.Daily(1, recurrence.Count(30))),
	}
	single := &storage.Event{Name: "dentist", Anchor: hour(at(3, 8, 15))}
	weekly := &storage.Event{
		Name:   "gym",
		Anchor: hour(at(3, 6, 18)),
		Rule: mo.Some(recurrence.Weekly(1,
			recurrence.WeekMapOf(time.Monday, time.Wednesday),
			recurrence.Count(10))),
	}
	for _, e := range []*storage.Event{daily, single, weekly} {
		require.NoError(t, store.CreateEvent(ctx, e))
	}

	engine := recurrence.NewEngine()
	t.Cleanup(engine.Close)
	return fixture{
		store:   store,
		daily:   daily,
		single:  single,
		weekly:  weekly,
		service: New(store, engine, WithParallelism(2)),
	}
}

func TestEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Mar 6 (Mon) through Mar 8 (Wed)
	window := recurrence.NewTimeRange(at(3, 6, 0), at(3, 9, 0))
	got, err := f.service.Entries(ctx, window)
	require.NoError(t, err)

	require.Len(t, got.Events, 3)
	assert.Equal(t, "standup", got.Events[f.daily.ID].Name)
	assert.Equal(t, at(3, 31, 11), got.Events[f.daily.ID].EntriesEnd)
	assert.Equal(t, at(3, 1, 10), got.Events[f.daily.ID].EntriesStart)

	var starts []time.Time
	for _, e := range got.Entries {
		starts = append(starts, e.Window().Start)
	}
	assert.Equal(t, []time.Time{
		at(3, 6, 10), at(3, 6, 18),
		at(3, 7, 10),
		at(3, 8, 10), at(3, 8, 15), at(3, 8, 18),
	}, starts)
}

func TestEntriesWithOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Moved from before the window into it.
	require.NoError(t, f.store.CreateOverride(ctx, &override.Override{
		EventID:     f.daily.ID,
		Original:    hour(at(3, 5, 10)),
		Replacement: mo.Some(hour(at(3, 6, 7))),
	}))
	// Moved out of the window; still reported at its new time.
	require.NoError(t, f.store.CreateOverride(ctx, &override.Override{
		EventID:     f.daily.ID,
		Original:    hour(at(3, 7, 10)),
		Replacement: mo.Some(hour(at(3, 20, 10))),
	}))
	require.NoError(t, f.store.CreateOverride(ctx, &override.Override{
		EventID:   f.daily.ID,
		Original:  hour(at(3, 8, 10)),
		DeletedAt: mo.Some(at(3, 1, 0)),
	}))
	require.NoError(t, f.store.CreateOverride(ctx, &override.Override{
		EventID:  f.single.ID,
		Original: hour(at(3, 8, 15)),
		Patch:    mo.Some(override.Patch{Name: mo.Some("orthodontist")}),
	}))

	window := recurrence.NewTimeRange(at(3, 6, 0), at(3, 9, 0))
	got, err := f.service.Entries(ctx, window, f.daily.ID, f.single.ID)
	require.NoError(t, err)
	require.Len(t, got.Events, 2)

	type row struct {
		start   time.Time
		name    string
		deleted bool
	}
	var rows []row
	for _, e := range got.Entries {
		name, _ := got.Describe(e)
		rows = append(rows, row{e.Window().Start, name, e.Deleted()})
	}
	assert.Equal(t, []row{
		{at(3, 6, 7), "standup", false},
		{at(3, 6, 10), "standup", false},
		{at(3, 8, 10), "standup", true},
		{at(3, 8, 15), "orthodontist", false},
		{at(3, 20, 10), "standup", false},
	}, rows)
}

func TestEntriesEmptyWindow(t *testing.T) {
	f := newFixture(t)
	got, err := f.service.Entries(context.Background(),
		recurrence.NewTimeRange(at(6, 1, 0), at(7, 1, 0)))
	require.NoError(t, err)
	assert.Empty(t, got.Events)
	assert.Empty(t, got.Entries)
}

type failingStore struct {
	storage.Store
	err error
}

func (s failingStore) ListOverrides(context.Context, []uuid.UUID) ([]override.Override, error) {
	return nil, s.err
}

func TestEntriesStoreError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	service := New(failingStore{Store: f.store, err: boom}, nil)

	_, err := service.Entries(context.Background(), recurrence.NewTimeRange(at(3, 6, 0), at(3, 9, 0)))
	assert.ErrorIs(t, err, boom)

	_, err = service.Entries(context.Background(), recurrence.NewTimeRange(at(3, 9, 0), at(3, 6, 0)))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestEventsMerge(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	left := &Events{
		Events:  map[uuid.UUID]EventInfo{a: {ID: a}},
		Entries: []override.Entry{{EventID: a, Original: hour(at(3, 2, 10))}},
	}
	right := &Events{
		Events:  map[uuid.UUID]EventInfo{b: {ID: b}},
		Entries: []override.Entry{{EventID: b, Original: hour(at(3, 1, 10))}},
	}

	left.Merge(right)
	left.Merge(nil)
	assert.Len(t, left.Events, 2)
	require.Len(t, left.Entries, 2)
	assert.Equal(t, b, left.Entries[0].EventID)
	assert.Equal(t, a, left.Entries[1].EventID)

	var empty Events
	empty.Merge(right)
	assert.Len(t, empty.Events, 1)
}
