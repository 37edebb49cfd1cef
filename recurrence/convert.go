package recurrence

import (
	"fmt"
	"math"
	"time"
)

// CountToUntil returns the end of the n-th occurrence after the anchor. The
// rule's own termination is ignored.
func CountToUntil(anchor TimeRange, rule Rule, n uint32) (time.Time, error) {
	seq, err := newSequence(anchor, rule)
	if err != nil {
		return time.Time{}, err
	}
	start, err := seq.at(int64(n))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to locate occurrence %d of %s: %w", n, rule, err)
	}
	return start.Add(seq.duration), nil
}

// UntilToCount returns the ordinal of the last occurrence ending at or before
// until. Zero means only the anchor, which is returned even when it has not
// ended yet.
func UntilToCount(anchor TimeRange, rule Rule, until time.Time) (uint32, error) {
	seq, err := newSequence(anchor, rule)
	if err != nil {
		return 0, err
	}
	k, err := seq.untilIndex(until)
	if err != nil {
		return 0, fmt.Errorf("failed to count occurrences of %s until %s: %w",
			rule, until.UTC().Format(time.RFC3339), err)
	}
	if k > math.MaxUint32 {
		return 0, overflowf("%d occurrences until %s", k, until.UTC().Format(time.RFC3339))
	}
	return uint32(k), nil
}

// TerminalInstant returns the end of the last occurrence the rule allows.
func TerminalInstant(anchor TimeRange, rule Rule) (time.Time, error) {
	last, err := LastOccurrence(anchor, rule)
	if err != nil {
		return time.Time{}, err
	}
	return last.End, nil
}

// LastOccurrence returns the final occurrence the rule allows.
func LastOccurrence(anchor TimeRange, rule Rule) (TimeRange, error) {
	if err := ValidateSeries(anchor, rule); err != nil {
		return TimeRange{}, err
	}
	seq, err := newSequence(anchor, rule)
	if err != nil {
		return TimeRange{}, err
	}
	final, err := seq.final()
	if err != nil {
		return TimeRange{}, err
	}
	last, ok := final.Get()
	if !ok {
		return TimeRange{}, overflowf("%s ends after year %d", rule, MaxYear)
	}
	return last, nil
}
