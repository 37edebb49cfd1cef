package recurrence

import (
	"fmt"
	"iter"
	"time"
)

// Expand returns every occurrence overlapping window, in ascending order. It
// starts at the period just before the window rather than at the anchor, and
// never goes past the rule's own termination.
func Expand(anchor TimeRange, rule Rule, window TimeRange) ([]TimeRange, error) {
	var out []TimeRange
	err := expand(anchor, rule, window, func(occ TimeRange) bool {
		out = append(out, occ)
		return true
	})
	return out, err
}

func expand(anchor TimeRange, rule Rule, window TimeRange, yield func(TimeRange) bool) error {
	if err := window.Validate(); err != nil {
		return err
	}
	if err := ValidateSeries(anchor, rule); err != nil {
		return err
	}
	seq, err := newSequence(anchor, rule)
	if err != nil {
		return err
	}
	final, err := seq.final()
	if err != nil {
		return fmt.Errorf("failed to resolve termination of %s: %w", rule, err)
	}
	last, bounded := final.Get()

	// Anything in an earlier period ends before the window starts.
	from := int64(0)
	if lead := window.Start.Add(-seq.duration); !lead.Before(seq.start) {
		from = seq.period(lead)
	}

	return seq.each(from, func(start time.Time) bool {
		if !start.Before(window.End) {
			return false
		}
		occ := seq.occurrence(start)
		if bounded && occ.End.After(last.End) {
			return false
		}
		if occ.Overlaps(window) {
			return yield(occ)
		}
		return true
	})
}

// Occurrences iterates over the whole series from the anchor. The sequence is
// finite and can be ranged over more than once.
func Occurrences(anchor TimeRange, rule Rule) iter.Seq2[TimeRange, error] {
	return func(yield func(TimeRange, error) bool) {
		last, err := LastOccurrence(anchor, rule)
		if err != nil {
			yield(TimeRange{}, err)
			return
		}
		seq, err := newSequence(anchor, rule)
		if err != nil {
			yield(TimeRange{}, err)
			return
		}
		err = seq.each(0, func(start time.Time) bool {
			occ := seq.occurrence(start)
			if occ.End.After(last.End) {
				return false
			}
			return yield(occ, nil)
		})
		if err != nil {
			yield(TimeRange{}, err)
		}
	}
}

// All collects Occurrences into a slice.
func All(anchor TimeRange, rule Rule) ([]TimeRange, error) {
	var out []TimeRange
	for occ, err := range Occurrences(anchor, rule) {
		if err != nil {
			return nil, err
		}
		out = append(out, occ)
	}
	return out, nil
}
