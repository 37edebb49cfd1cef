package recurrence

import (
	"errors"
	"time"

	"github.com/samber/mo"
)

// Offset limits per period unit, one year past MaxYear.
const (
	dayLimit   = int64(MaxYear+1) * 366
	weekLimit  = int64(MaxYear+1) * 53
	monthLimit = int64(MaxYear+1) * 12
	yearLimit  = int64(MaxYear + 1)
)

// sequence lays a rule out as numbered periods (interval days, interval-weeks,
// months or years) starting with the anchor's period. Every period holds zero or
// more candidate starts; the series is the anchor followed by every candidate
// strictly after it.
type sequence struct {
	rule     Rule
	start    time.Time
	duration time.Duration
	// midnight UTC of the first day of period 0 for daily and weekly rules
	base time.Time
	tod  time.Duration
	// candidates per period when constant, 0 when some periods are skipped
	perPeriod int

	days    []int // weekly: active Monday-based day offsets
	year    int
	month   time.Month
	dom     int
	weekday time.Weekday
	week    int // weekday position in month (0-4), or ISO week for yearly rules
	isoYear int
}

func newSequence(anchor TimeRange, rule Rule) (*sequence, error) {
	if err := validateAnchor(anchor); err != nil {
		return nil, err
	}
	if err := rule.validateStep(); err != nil {
		return nil, err
	}

	start := anchor.Start.UTC()
	s := &sequence{
		rule:     rule,
		start:    start,
		duration: anchor.Duration(),
		base:     midnight(start),
		year:     start.Year(),
		month:    start.Month(),
		dom:      start.Day(),
		weekday:  start.Weekday(),
	}
	s.tod = start.Sub(s.base)

	switch rule.Kind {
	case KindDaily:
		s.perPeriod = 1
	case KindWeekly:
		s.base = s.base.AddDate(0, 0, -mondayIndex(s.weekday))
		for _, d := range rule.WeekMap.Days() {
			s.days = append(s.days, mondayIndex(d))
		}
		s.perPeriod = len(s.days)
	case KindMonthly:
		s.week = (s.dom - 1) / 7
		if s.dom <= 28 {
			s.perPeriod = 1
		}
	case KindYearly:
		if rule.ByDay {
			if !(s.month == time.February && s.dom == 29) {
				s.perPeriod = 1
			}
		} else {
			s.isoYear, s.week = start.ISOWeek()
			if s.week <= 52 {
				s.perPeriod = 1
			}
		}
	}
	return s, nil
}

// period returns the number of the period containing t. It is negative for
// instants before the anchor's period.
func (s *sequence) period(t time.Time) int64 {
	t = t.UTC()
	interval := int64(s.rule.Interval)
	switch s.rule.Kind {
	case KindDaily:
		return floorDiv(dayNumber(t)-dayNumber(s.base), interval)
	case KindWeekly:
		return floorDiv(dayNumber(t)-dayNumber(s.base), 7*interval)
	case KindMonthly:
		months := (int64(t.Year())*12 + int64(t.Month())) - (int64(s.year)*12 + int64(s.month))
		return floorDiv(months, interval)
	default:
		if s.rule.ByDay {
			return floorDiv(int64(t.Year()-s.year), interval)
		}
		isoYear, _ := t.ISOWeek()
		return floorDiv(int64(isoYear-s.isoYear), interval)
	}
}

// starts appends the candidate starts of period j to dst in ascending order.
func (s *sequence) starts(j int64, dst []time.Time) ([]time.Time, error) {
	interval := s.rule.Interval
	switch s.rule.Kind {
	case KindDaily:
		off, err := scale(j, interval, dayLimit)
		if err != nil {
			return dst, err
		}
		return s.appendDay(dst, s.base, off)

	case KindWeekly:
		weeks, err := scale(j, interval, weekLimit)
		if err != nil {
			return dst, err
		}
		for _, d := range s.days {
			if dst, err = s.appendDay(dst, s.base, weeks*7+int64(d)); err != nil {
				return dst, err
			}
		}
		return dst, nil

	case KindMonthly:
		off, err := scale(j, interval, monthLimit)
		if err != nil {
			return dst, err
		}
		year, month, err := AddMonths(s.year, s.month, off)
		if err != nil {
			return dst, err
		}
		dom := s.dom
		if !s.rule.ByDay {
			first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
			dom = 1 + 7*s.week + WeekdayDistance(first, s.weekday)
		}
		if dom > DaysIn(year, month) {
			return dst, nil
		}
		return append(dst, time.Date(year, month, dom, 0, 0, 0, 0, time.UTC).Add(s.tod)), nil

	default:
		off, err := scale(j, interval, yearLimit)
		if err != nil {
			return dst, err
		}
		if s.rule.ByDay {
			year := s.year + int(off)
			if err := checkYear(year); err != nil {
				return dst, err
			}
			if s.dom > DaysIn(year, s.month) {
				return dst, nil
			}
			return append(dst, time.Date(year, s.month, s.dom, 0, 0, 0, 0, time.UTC).Add(s.tod)), nil
		}
		year := s.isoYear + int(off)
		if err := checkYear(year); err != nil {
			return dst, err
		}
		if s.week > ISOWeeksInYear(year) {
			return dst, nil
		}
		return s.appendDay(dst, ISOWeekStart(year), int64(7*(s.week-1)+mondayIndex(s.weekday)))
	}
}

func (s *sequence) appendDay(dst []time.Time, from time.Time, n int64) ([]time.Time, error) {
	d, err := addDays(from, n)
	if err != nil {
		return dst, err
	}
	return append(dst, d.Add(s.tod)), nil
}

// head returns the occurrences contributed by period 0: the anchor itself and
// every candidate after it.
func (s *sequence) head() ([]time.Time, error) {
	candidates, err := s.starts(0, nil)
	if err != nil {
		return nil, err
	}
	head := []time.Time{s.start}
	for _, c := range candidates {
		if c.After(s.start) {
			head = append(head, c)
		}
	}
	return head, nil
}

// at returns the start of occurrence k, the anchor being k = 0.
func (s *sequence) at(k int64) (time.Time, error) {
	head, err := s.head()
	if err != nil {
		return time.Time{}, err
	}
	if k < int64(len(head)) {
		return head[k], nil
	}
	k -= int64(len(head))

	if s.perPeriod > 0 {
		p := int64(s.perPeriod)
		candidates, err := s.starts(1+k/p, nil)
		if err != nil {
			return time.Time{}, err
		}
		return candidates[k%p], nil
	}

	// Skipped periods make the position irregular, so walk. starts fails with
	// ErrArithmeticOverflow before this can run away.
	var buf []time.Time
	for j := int64(1); ; j++ {
		if buf, err = s.starts(j, buf[:0]); err != nil {
			return time.Time{}, err
		}
		if k < int64(len(buf)) {
			return buf[k], nil
		}
		k -= int64(len(buf))
	}
}

// index returns the largest k whose occurrence starts at or before t, or -1
// when t precedes the anchor.
func (s *sequence) index(t time.Time) (int64, error) {
	if t.Before(s.start) {
		return -1, nil
	}
	head, err := s.head()
	if err != nil {
		return 0, err
	}
	j := s.period(t)
	if j == 0 {
		return countNotAfter(head, t) - 1, nil
	}

	n := int64(len(head))
	if s.perPeriod > 0 {
		n += (j - 1) * int64(s.perPeriod)
	} else {
		var buf []time.Time
		for p := int64(1); p < j; p++ {
			if buf, err = s.starts(p, buf[:0]); err != nil {
				return 0, err
			}
			n += int64(len(buf))
		}
	}
	last, err := s.starts(j, nil)
	if err != nil {
		return 0, err
	}
	return n + countNotAfter(last, t) - 1, nil
}

func countNotAfter(ts []time.Time, t time.Time) int64 {
	var n int64
	for _, x := range ts {
		if !x.After(t) {
			n++
		}
	}
	return n
}

// untilIndex is the ordinal of the last occurrence ending at or before t, clamped to 0.
func (s *sequence) untilIndex(t time.Time) (int64, error) {
	k, err := s.index(t.Add(-s.duration))
	if err != nil {
		return 0, err
	}
	return max(k, 0), nil
}

// final returns the last occurrence allowed by the termination. None means the
// termination lies beyond the representable calendar, which only a large Count
// can cause.
func (s *sequence) final() (mo.Option[TimeRange], error) {
	var k int64
	if n, ok := s.rule.Termination.Count.Get(); ok {
		k = int64(n)
	} else if until, ok := s.rule.Termination.Until.Get(); ok {
		var err error
		if k, err = s.untilIndex(until); err != nil {
			return mo.None[TimeRange](), err
		}
	} else {
		return mo.None[TimeRange](), &RuleError{Field: "termination", Reason: "missing count or until"}
	}

	start, err := s.at(k)
	if err != nil {
		if _, isCount := s.rule.Termination.Count.Get(); isCount && errors.Is(err, ErrArithmeticOverflow) {
			return mo.None[TimeRange](), nil
		}
		return mo.None[TimeRange](), err
	}
	return mo.Some(s.occurrence(start)), nil
}

// occurrence expands a start into a full TimeRange.
func (s *sequence) occurrence(start time.Time) TimeRange {
	return TimeRange{Start: start, End: start.Add(s.duration)}
}

// each walks candidate starts from period j onwards until fn returns false.
func (s *sequence) each(j int64, fn func(start time.Time) bool) error {
	var buf []time.Time
	var err error
	for ; ; j++ {
		if j <= 0 {
			j = 0
			buf, err = s.head()
		} else {
			buf, err = s.starts(j, buf[:0])
		}
		if err != nil {
			return err
		}
		for _, start := range buf {
			if !fn(start) {
				return nil
			}
		}
	}
}
