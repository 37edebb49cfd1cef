package recurrence

import (
	"fmt"
	"time"
)

// TimeRange is a half-open interval [Start, End) on the absolute timeline.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange builds a TimeRange without validating it.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start, End: end}
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Validate checks that the range does not end before it starts.
func (r TimeRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidWindow,
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether the two half-open ranges share any instant. An empty
// r counts as the single instant r.Start.
func (r TimeRange) Overlaps(o TimeRange) bool {
	if r.Start.Equal(r.End) {
		return !r.Start.Before(o.Start) && r.Start.Before(o.End)
	}
	return r.Start.Before(o.End) && r.End.After(o.Start)
}

// Contains reports whether o lies entirely within r, bounds included.
func (r TimeRange) Contains(o TimeRange) bool {
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

// Shift moves both bounds by d.
func (r TimeRange) Shift(d time.Duration) TimeRange {
	return TimeRange{Start: r.Start.Add(d), End: r.End.Add(d)}
}

// UTC returns the range with both bounds in UTC.
func (r TimeRange) UTC() TimeRange {
	return TimeRange{Start: r.Start.UTC(), End: r.End.UTC()}
}

// Equal compares the instants, ignoring location.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
