package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/cyp0633/librecur/agenda"
	"github.com/cyp0633/librecur/override"
	"github.com/emersion/go-ical"
)

const (
	productID       = "-//librecur//Occurrence Export//EN"
	statusCancelled = "CANCELLED"
	statusConfirmed = "CONFIRMED"
)

// Encode writes one VEVENT per entry. Entries of recurring events carry
// their original start as RECURRENCE-ID.
func Encode(w io.Writer, events *agenda.Events) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	stamp := time.Now().UTC().Truncate(time.Second)
	for _, entry := range events.Entries {
		cal.Children = append(cal.Children, encodeEntry(events, entry, stamp).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func encodeEntry(events *agenda.Events, entry override.Entry, stamp time.Time) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, entry.EventID.String())
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)

	if info, ok := events.Events[entry.EventID]; ok && info.Rule.IsPresent() {
		ev.Props.SetDateTime(ical.PropRecurrenceID, entry.Original.Start.UTC())
	}

	window := entry.Window()
	ev.Props.SetDateTime(ical.PropDateTimeStart, window.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, window.End.UTC())

	name, description := events.Describe(entry)
	if name != "" {
		ev.Props.SetText(ical.PropSummary, name)
	}
	if description != "" {
		ev.Props.SetText(ical.PropDescription, description)
	}

	status := statusConfirmed
	if entry.Deleted() {
		status = statusCancelled
	}
	ev.Props.SetText(ical.PropStatus, status)
	return ev
}
