package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

// ErrMissingStart is returned when a component has no DTSTART
var ErrMissingStart = errors.New("component has no DTSTART")

// ExtractSeriesFromComponent reads the anchor occurrence and, when an RRULE is
// present, the rule of an iCal component
func ExtractSeriesFromComponent(comp *ical.Component) (TimeRange, mo.Option[Rule], error) {
	anchor, err := ExtractAnchorFromComponent(comp)
	if err != nil {
		return TimeRange{}, mo.None[Rule](), err
	}

	rruleProp := comp.Props.Get(ical.PropRecurrenceRule)
	if rruleProp == nil || rruleProp.Value == "" {
		return anchor, mo.None[Rule](), nil
	}
	rule, err := FromRRule(anchor, rruleProp.Value)
	if err != nil {
		return TimeRange{}, mo.None[Rule](), err
	}
	return anchor, mo.Some(rule), nil
}

// ExtractAnchorFromComponent reads DTSTART and DTEND or DURATION
func ExtractAnchorFromComponent(comp *ical.Component) (TimeRange, error) {
	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return TimeRange{}, ErrMissingStart
	}
	start, err := startProp.DateTime(time.UTC)
	if err != nil {
		return TimeRange{}, fmt.Errorf("failed to parse DTSTART: %w", err)
	}
	allDay := startProp.ValueType() == ical.ValueDate

	var end time.Time
	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		if end, err = endProp.DateTime(time.UTC); err != nil {
			return TimeRange{}, fmt.Errorf("failed to parse DTEND: %w", err)
		}
		// An all-day event ending on its own date still lasts the whole day.
		if allDay && end.Equal(start) {
			end = start.AddDate(0, 0, 1)
		}
	} else if durationProp := comp.Props.Get(ical.PropDuration); durationProp != nil {
		d, err := durationProp.Duration()
		if err != nil {
			return TimeRange{}, fmt.Errorf("failed to parse DURATION: %w", err)
		}
		end = start.Add(d)
	} else if allDay {
		end = start.AddDate(0, 0, 1)
	} else {
		end = start
	}

	anchor := TimeRange{Start: start.UTC(), End: end.UTC()}
	if err := validateAnchor(anchor); err != nil {
		return TimeRange{}, err
	}
	return anchor, nil
}

// RecurrenceIDFromComponent returns the RECURRENCE-ID of an exception instance
func RecurrenceIDFromComponent(comp *ical.Component) (mo.Option[time.Time], error) {
	prop := comp.Props.Get(ical.PropRecurrenceID)
	if prop == nil || prop.Value == "" {
		return mo.None[time.Time](), nil
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return mo.None[time.Time](), fmt.Errorf("failed to parse RECURRENCE-ID: %w", err)
	}
	return mo.Some(t.UTC()), nil
}

// ExceptionDatesFromComponent collects every EXDATE value, across repeated properties
func ExceptionDatesFromComponent(comp *ical.Component) []time.Time {
	var exdates []time.Time
	for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
		exdates = append(exdates, parseDateList(prop.Value, prop.Params)...)
	}
	return exdates
}

// parseDateList parses a comma separated EXDATE or RDATE value. Unparseable
// items are skipped.
func parseDateList(value string, params ical.Params) []time.Time {
	if value == "" {
		return nil
	}

	dateOnly := strings.EqualFold(params.Get(ical.ParamValue), string(ical.ValueDate))
	loc := time.UTC
	if tzid := params.Get(ical.ParamTimezoneID); tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	var dates []time.Time
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if t, err := parseDateTime(item, dateOnly, loc); err == nil {
			dates = append(dates, t.UTC())
		}
	}
	return dates
}

func parseDateTime(value string, dateOnly bool, loc *time.Location) (time.Time, error) {
	if dateOnly {
		return time.ParseInLocation("20060102", value, time.UTC)
	}
	if strings.HasSuffix(value, "Z") {
		return time.Parse("20060102T150405Z", value)
	}
	t, err := time.ParseInLocation("20060102T150405", value, loc)
	if err != nil {
		// Fall back to a date-only value
		return time.ParseInLocation("20060102", value, time.UTC)
	}
	return t, nil
}
