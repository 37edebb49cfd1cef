package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// Prev returns the latest occurrence starting at or before t. Instants past the
// end of the series resolve to its last occurrence; instants before the anchor
// resolve to None.
func Prev(anchor TimeRange, rule Rule, t time.Time) (mo.Option[TimeRange], error) {
	seq, final, err := neighbors(anchor, rule)
	if err != nil {
		return mo.None[TimeRange](), err
	}
	if t.Before(seq.start) {
		return mo.None[TimeRange](), nil
	}
	if last, ok := final.Get(); ok && !t.Before(last.Start) {
		return mo.Some(last), nil
	}

	k, err := seq.index(t)
	if err != nil {
		return mo.None[TimeRange](), err
	}
	start, err := seq.at(k)
	if err != nil {
		return mo.None[TimeRange](), err
	}
	return mo.Some(seq.occurrence(start)), nil
}

// Next returns the earliest occurrence that has not ended at t. That is the
// anchor for any t before it, and None once the series is over.
func Next(anchor TimeRange, rule Rule, t time.Time) (mo.Option[TimeRange], error) {
	seq, final, err := neighbors(anchor, rule)
	if err != nil {
		return mo.None[TimeRange](), err
	}
	if last, ok := final.Get(); ok && !t.Before(last.End) {
		return mo.None[TimeRange](), nil
	}

	k, err := seq.index(t.Add(-seq.duration))
	if err != nil {
		return mo.None[TimeRange](), err
	}
	start, err := seq.at(k + 1)
	if err != nil {
		return mo.None[TimeRange](), err
	}
	return mo.Some(seq.occurrence(start)), nil
}

func neighbors(anchor TimeRange, rule Rule) (*sequence, mo.Option[TimeRange], error) {
	if err := ValidateSeries(anchor, rule); err != nil {
		return nil, mo.None[TimeRange](), err
	}
	seq, err := newSequence(anchor, rule)
	if err != nil {
		return nil, mo.None[TimeRange](), err
	}
	final, err := seq.final()
	if err != nil {
		return nil, mo.None[TimeRange](), err
	}
	return seq, final, nil
}
