package override

import (
	"iter"
	"slices"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Group buckets overrides by event, each bucket sorted by original start.
func Group(overrides []Override) map[uuid.UUID][]Override {
	groups := make(map[uuid.UUID][]Override)
	for _, o := range overrides {
		groups[o.EventID] = append(groups[o.EventID], o)
	}
	for _, g := range groups {
		sortByOriginal(g)
	}
	return groups
}

func sortByOriginal(overrides []Override) {
	slices.SortStableFunc(overrides, func(a, b Override) int {
		return a.Original.Start.Compare(b.Original.Start)
	})
}

// Merge pairs ascending occurrences of one event with its overrides. An
// occurrence takes the latest-created override whose original window contains
// it; the others pass through untouched. Overrides of other events are ignored.
func Merge(eventID uuid.UUID, occurrences []recurrence.TimeRange, overrides []Override) []Entry {
	sw := newSweeper(eventID, overrides)
	entries := make([]Entry, 0, len(occurrences))
	for _, occ := range occurrences {
		entries = append(entries, sw.entry(occ))
	}
	return entries
}

// Stream is Merge over an occurrence iterator such as recurrence.Occurrences.
func Stream(eventID uuid.UUID, occurrences iter.Seq2[recurrence.TimeRange, error], overrides []Override) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		sw := newSweeper(eventID, overrides)
		for occ, err := range occurrences {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(sw.entry(occ), nil) {
				return
			}
		}
	}
}

// Resolve matches a single occurrence against overrides in any order.
func Resolve(eventID uuid.UUID, occ recurrence.TimeRange, overrides []Override) Entry {
	best := mo.None[Override]()
	for _, o := range overrides {
		if o.EventID != eventID || !o.Applies(occ) {
			continue
		}
		if cur, ok := best.Get(); !ok || o.CreatedAt.After(cur.CreatedAt) {
			best = mo.Some(o)
		}
	}
	return Entry{EventID: eventID, Original: occ, Override: best}
}

// Edge returns the entry for an occurrence outside window when an override
// has moved it into the window.
func Edge(eventID uuid.UUID, occ recurrence.TimeRange, window recurrence.TimeRange, overrides []Override) (Entry, bool) {
	if occ.Overlaps(window) {
		return Entry{}, false
	}
	entry := Resolve(eventID, occ, overrides)
	o, ok := entry.Override.Get()
	if !ok {
		return Entry{}, false
	}
	moved, ok := o.Replacement.Get()
	if !ok || !moved.Overlaps(window) {
		return Entry{}, false
	}
	return entry, true
}

// sweeper walks occurrences and overrides together. Both advance monotonically,
// so every override enters and leaves the active set once.
type sweeper struct {
	eventID   uuid.UUID
	overrides []Override
	next      int
	active    []Override
}

func newSweeper(eventID uuid.UUID, overrides []Override) *sweeper {
	own := make([]Override, 0, len(overrides))
	for _, o := range overrides {
		if o.EventID == eventID {
			own = append(own, o)
		}
	}
	sortByOriginal(own)
	return &sweeper{eventID: eventID, overrides: own}
}

func (s *sweeper) entry(occ recurrence.TimeRange) Entry {
	for s.next < len(s.overrides) && !s.overrides[s.next].Original.Start.After(occ.Start) {
		s.active = append(s.active, s.overrides[s.next])
		s.next++
	}
	// Later occurrences end later too, so a window ending before this one is spent.
	s.active = slices.DeleteFunc(s.active, func(o Override) bool {
		return o.Original.End.Before(occ.End)
	})

	best := mo.None[Override]()
	for _, o := range s.active {
		if cur, ok := best.Get(); !ok || o.CreatedAt.After(cur.CreatedAt) {
			best = mo.Some(o)
		}
	}
	return Entry{EventID: s.eventID, Original: occ, Override: best}
}
