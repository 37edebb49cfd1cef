package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

// seriesFile is the YAML description of one series
type seriesFile struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
	Rule        *ruleSpec `yaml:"rule"`
}

type ruleSpec struct {
	Kind     string     `yaml:"kind"`
	Interval uint32     `yaml:"interval"`
	WeekMap  string     `yaml:"week_map"`
	ByDay    bool       `yaml:"by_day"`
	Count    *uint32    `yaml:"count"`
	Until    *time.Time `yaml:"until"`
}

func loadSeries(path string) (seriesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seriesFile{}, fmt.Errorf("reading series file: %w", err)
	}
	return parseSeries(data)
}

func parseSeries(data []byte) (seriesFile, error) {
	var s seriesFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return seriesFile{}, fmt.Errorf("parsing series file: %w", err)
	}
	if s.Start.IsZero() {
		return seriesFile{}, errors.New("series file: start is required")
	}
	if s.End.IsZero() {
		s.End = s.Start
	}
	return s, nil
}

func (s seriesFile) anchor() recurrence.TimeRange {
	return recurrence.NewTimeRange(s.Start, s.End).UTC()
}

// rule returns None for a series without a rule block.
func (s seriesFile) rule() (mo.Option[recurrence.Rule], error) {
	if s.Rule == nil {
		return mo.None[recurrence.Rule](), nil
	}
	spec := s.Rule

	kind, err := recurrence.ParseKind(spec.Kind)
	if err != nil {
		return mo.None[recurrence.Rule](), err
	}
	interval := spec.Interval
	if interval == 0 {
		interval = 1
	}

	var end recurrence.Termination
	switch {
	case spec.Count != nil && spec.Until != nil:
		return mo.None[recurrence.Rule](), errors.New("series file: count and until are exclusive")
	case spec.Count != nil:
		end = recurrence.Count(*spec.Count)
	case spec.Until != nil:
		end = recurrence.Until(spec.Until.UTC())
	default:
		return mo.None[recurrence.Rule](), errors.New("series file: rule needs count or until")
	}

	rule := recurrence.Rule{Kind: kind, Interval: interval, Termination: end, ByDay: spec.ByDay}
	if kind == recurrence.KindWeekly {
		weekMap, err := parseWeekMapField(spec.WeekMap, s.Start)
		if err != nil {
			return mo.None[recurrence.Rule](), err
		}
		rule.WeekMap = weekMap
	}
	if err := recurrence.ValidateSeries(s.anchor(), rule); err != nil {
		return mo.None[recurrence.Rule](), err
	}
	return mo.Some(rule), nil
}

// parseWeekMapField defaults to the anchor's own weekday.
func parseWeekMapField(value string, start time.Time) (recurrence.WeekMap, error) {
	if value == "" {
		return recurrence.WeekMapOf(start.UTC().Weekday()), nil
	}
	return recurrence.ParseWeekMap(value)
}
