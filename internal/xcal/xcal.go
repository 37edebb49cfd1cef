// Package xcal renders agenda entries as RFC 6321 xCal documents and reads them back.
package xcal

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/librecur/agenda"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/samber/mo"
)

// Namespace is the xCal XML namespace
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const (
	tagICalendar    = "icalendar"
	tagVCalendar    = "vcalendar"
	tagVEvent       = "vevent"
	tagProperties   = "properties"
	tagComponents   = "components"
	tagUID          = "uid"
	tagDTStart      = "dtstart"
	tagDTEnd        = "dtend"
	tagRecurrenceID = "recurrence-id"
	tagSummary      = "summary"
	tagStatus       = "status"
	tagProdID       = "prodid"
	tagVersion      = "version"
	tagText         = "text"
	tagDateTime     = "date-time"
)

const dateTimeLayout = "2006-01-02T15:04:05Z"

// Entry is one VEVENT of an xCal document
type Entry struct {
	UID          string
	RecurrenceID mo.Option[time.Time]
	Window       recurrence.TimeRange
	Summary      string
	Status       string
}

// Encode writes events as an xCal document.
func Encode(w io.Writer, events *agenda.Events) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement(tagICalendar)
	root.CreateAttr("xmlns", Namespace)
	vcal := root.CreateElement(tagVCalendar)

	props := vcal.CreateElement(tagProperties)
	addText(props, tagProdID, "-//librecur//Occurrence Export//EN")
	addText(props, tagVersion, "2.0")

	components := vcal.CreateElement(tagComponents)
	for _, entry := range events.Entries {
		vevent := components.CreateElement(tagVEvent)
		p := vevent.CreateElement(tagProperties)

		addText(p, tagUID, entry.EventID.String())
		if info, ok := events.Events[entry.EventID]; ok && info.Rule.IsPresent() {
			addDateTime(p, tagRecurrenceID, entry.Original.Start)
		}
		window := entry.Window()
		addDateTime(p, tagDTStart, window.Start)
		addDateTime(p, tagDTEnd, window.End)
		if name, _ := events.Describe(entry); name != "" {
			addText(p, tagSummary, name)
		}
		status := "CONFIRMED"
		if entry.Deleted() {
			status = "CANCELLED"
		}
		addText(p, tagStatus, status)
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("writing xCal document: %w", err)
	}
	return nil
}

func addText(parent *etree.Element, name, value string) {
	parent.CreateElement(name).CreateElement(tagText).SetText(value)
}

func addDateTime(parent *etree.Element, name string, t time.Time) {
	parent.CreateElement(name).CreateElement(tagDateTime).SetText(t.UTC().Format(dateTimeLayout))
}

// Decode reads the VEVENTs of an xCal document.
func Decode(r io.Reader) ([]Entry, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parsing xCal document: %w", err)
	}

	root := doc.SelectElement(tagICalendar)
	if root == nil {
		return nil, errors.New("missing icalendar root element")
	}

	var entries []Entry
	for _, vcal := range root.SelectElements(tagVCalendar) {
		components := vcal.SelectElement(tagComponents)
		if components == nil {
			continue
		}
		for _, vevent := range components.SelectElements(tagVEvent) {
			entry, err := decodeEvent(vevent)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func decodeEvent(vevent *etree.Element) (Entry, error) {
	var entry Entry
	props := vevent.SelectElement(tagProperties)
	if props == nil {
		return entry, errors.New("vevent without properties")
	}

	entry.UID = textValue(props, tagUID)
	entry.Summary = textValue(props, tagSummary)
	entry.Status = textValue(props, tagStatus)

	start, err := dateTimeValue(props, tagDTStart)
	if err != nil {
		return entry, err
	}
	t, ok := start.Get()
	if !ok {
		return entry, fmt.Errorf("vevent %q has no dtstart", entry.UID)
	}
	entry.Window = recurrence.NewTimeRange(t, t)

	end, err := dateTimeValue(props, tagDTEnd)
	if err != nil {
		return entry, err
	}
	if t, ok := end.Get(); ok {
		entry.Window.End = t
	}
	if err := entry.Window.Validate(); err != nil {
		return entry, fmt.Errorf("vevent %q: %w", entry.UID, err)
	}

	if entry.RecurrenceID, err = dateTimeValue(props, tagRecurrenceID); err != nil {
		return entry, err
	}
	return entry, nil
}

func textValue(props *etree.Element, name string) string {
	prop := props.SelectElement(name)
	if prop == nil {
		return ""
	}
	if text := prop.SelectElement(tagText); text != nil {
		return text.Text()
	}
	return prop.Text()
}

func dateTimeValue(props *etree.Element, name string) (mo.Option[time.Time], error) {
	prop := props.SelectElement(name)
	if prop == nil {
		return mo.None[time.Time](), nil
	}
	value := prop.SelectElement(tagDateTime)
	if value == nil {
		return mo.None[time.Time](), fmt.Errorf("%s has no date-time value", name)
	}
	t, err := time.Parse(dateTimeLayout, value.Text())
	if err != nil {
		return mo.None[time.Time](), fmt.Errorf("parsing %s: %w", name, err)
	}
	return mo.Some(t), nil
}
