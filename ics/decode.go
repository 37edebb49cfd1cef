// Package ics converts between iCalendar data and stored events.
package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Calendar holds what an iCalendar stream decodes to.
type Calendar struct {
	Events    []storage.Event
	Overrides []override.Override
}

// EventID maps a UID to an event ID. UIDs that are not UUIDs get a stable
// name-based one.
func EventID(uid string) uuid.UUID {
	if id, err := uuid.Parse(uid); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uid))
}

// Decode reads every VCALENDAR in r. Master VEVENTs become events; VEVENTs
// with a RECURRENCE-ID and EXDATE values become overrides of their master.
func Decode(r io.Reader) (*Calendar, error) {
	dec := ical.NewDecoder(r)

	var components []*ical.Component
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			components = append(components, ev.Component)
		}
	}

	out := &Calendar{}
	masters := make(map[string]storage.Event)
	var exceptions []*ical.Component
	for _, comp := range components {
		uid, err := comp.Props.Text(ical.PropUID)
		if err != nil || uid == "" {
			return nil, errors.New("VEVENT without UID")
		}
		if comp.Props.Get(ical.PropRecurrenceID) != nil {
			exceptions = append(exceptions, comp)
			continue
		}
		if _, dup := masters[uid]; dup {
			return nil, fmt.Errorf("duplicate VEVENT for UID %q", uid)
		}

		event, err := decodeMaster(uid, comp)
		if err != nil {
			return nil, fmt.Errorf("VEVENT %q: %w", uid, err)
		}
		masters[uid] = event
		out.Events = append(out.Events, event)

		stamp := timestamp(comp)
		for _, d := range recurrence.ExceptionDatesFromComponent(comp) {
			out.Overrides = append(out.Overrides, override.Override{
				EventID:   event.ID,
				Original:  recurrence.NewTimeRange(d, d.Add(event.Anchor.Duration())),
				DeletedAt: mo.Some(stamp.OrElse(time.Now().UTC())),
				CreatedAt: stamp.OrEmpty(),
			})
		}
	}

	for _, comp := range exceptions {
		uid, _ := comp.Props.Text(ical.PropUID)
		master, ok := masters[uid]
		if !ok {
			return nil, fmt.Errorf("RECURRENCE-ID for unknown UID %q", uid)
		}
		o, err := decodeException(master, comp)
		if err != nil {
			return nil, fmt.Errorf("VEVENT %q: %w", uid, err)
		}
		out.Overrides = append(out.Overrides, o)
	}
	return out, nil
}

func decodeMaster(uid string, comp *ical.Component) (storage.Event, error) {
	anchor, rule, err := recurrence.ExtractSeriesFromComponent(comp)
	if err != nil {
		return storage.Event{}, err
	}
	name, _ := comp.Props.Text(ical.PropSummary)
	description, _ := comp.Props.Text(ical.PropDescription)
	return storage.Event{
		ID:          EventID(uid),
		Name:        name,
		Description: description,
		Anchor:      anchor,
		Rule:        rule,
		CreatedAt:   timestamp(comp).OrEmpty(),
	}, nil
}

func decodeException(master storage.Event, comp *ical.Component) (override.Override, error) {
	rid, err := recurrence.RecurrenceIDFromComponent(comp)
	if err != nil {
		return override.Override{}, err
	}
	start, ok := rid.Get()
	if !ok {
		return override.Override{}, errors.New("empty RECURRENCE-ID")
	}
	original := recurrence.NewTimeRange(start, start.Add(master.Anchor.Duration()))

	o := override.Override{
		EventID:   master.ID,
		Original:  original,
		CreatedAt: timestamp(comp).OrEmpty(),
	}

	if comp.Props.Get(ical.PropDateTimeStart) != nil {
		window, err := recurrence.ExtractAnchorFromComponent(comp)
		if err != nil {
			return override.Override{}, err
		}
		if !window.Equal(original) {
			o.Replacement = mo.Some(window)
		}
	}

	var patch override.Patch
	if p := comp.Props.Get(ical.PropSummary); p != nil {
		if name, err := p.Text(); err == nil && name != master.Name {
			patch.Name = mo.Some(name)
		}
	}
	if p := comp.Props.Get(ical.PropDescription); p != nil {
		if desc, err := p.Text(); err == nil && desc != master.Description {
			patch.Description = mo.Some(desc)
		}
	}
	if patch.Name.IsPresent() || patch.Description.IsPresent() {
		o.Patch = mo.Some(patch)
	}

	if status, _ := comp.Props.Text(ical.PropStatus); status == statusCancelled {
		o.DeletedAt = mo.Some(timestamp(comp).OrElse(time.Now().UTC()))
	}
	return o, nil
}

func timestamp(comp *ical.Component) mo.Option[time.Time] {
	if comp.Props.Get(ical.PropDateTimeStamp) == nil {
		return mo.None[time.Time]()
	}
	t, err := comp.Props.DateTime(ical.PropDateTimeStamp, time.UTC)
	if err != nil {
		return mo.None[time.Time]()
	}
	return mo.Some(t.UTC())
}

// Import creates every decoded event in store, then its overrides.
func Import(ctx context.Context, store storage.Store, cal *Calendar) error {
	for i := range cal.Events {
		if err := store.CreateEvent(ctx, &cal.Events[i]); err != nil {
			return fmt.Errorf("importing event %s: %w", cal.Events[i].ID, err)
		}
	}
	for i := range cal.Overrides {
		if err := store.CreateOverride(ctx, &cal.Overrides[i]); err != nil {
			return fmt.Errorf("importing override of %s: %w", cal.Overrides[i].EventID, err)
		}
	}
	return nil
}
