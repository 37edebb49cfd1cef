package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// rruleWeekdays is indexed by time.Weekday.
var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func toRRuleWeekday(d time.Weekday) rrule.Weekday {
	return rruleWeekdays[d]
}

func fromRRuleWeekday(w rrule.Weekday) time.Weekday {
	return time.Weekday((w.Day() + 1) % 7)
}

// ToROption describes a series as rrule-go options. COUNT includes the anchor,
// so it is one more than the Count termination; UNTIL is the start of the last
// occurrence.
func ToROption(anchor TimeRange, rule Rule) (*rrule.ROption, error) {
	if err := ValidateSeries(anchor, rule); err != nil {
		return nil, err
	}
	start := anchor.Start.UTC()
	opt := &rrule.ROption{
		Dtstart:  start,
		Interval: int(rule.Interval),
		Wkst:     rrule.MO,
	}

	switch rule.Kind {
	case KindDaily:
		opt.Freq = rrule.DAILY
	case KindWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.WeekMap.Days() {
			opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(d))
		}
	case KindMonthly:
		opt.Freq = rrule.MONTHLY
		if rule.ByDay {
			opt.Bymonthday = []int{start.Day()}
		} else {
			wd := toRRuleWeekday(start.Weekday())
			opt.Byweekday = []rrule.Weekday{wd.Nth((start.Day()-1)/7 + 1)}
		}
	case KindYearly:
		opt.Freq = rrule.YEARLY
		if rule.ByDay {
			opt.Bymonth = []int{int(start.Month())}
			opt.Bymonthday = []int{start.Day()}
		} else {
			_, week := start.ISOWeek()
			opt.Byweekno = []int{week}
			opt.Byweekday = []rrule.Weekday{toRRuleWeekday(start.Weekday())}
		}
	}

	if n, ok := rule.Termination.Count.Get(); ok {
		opt.Count = int(n) + 1
	} else {
		last, err := LastOccurrence(anchor, rule)
		if err != nil {
			return nil, err
		}
		opt.Until = last.Start
	}
	return opt, nil
}

// RRuleString renders a series as an RRULE value without the DTSTART line.
func RRuleString(anchor TimeRange, rule Rule) (string, error) {
	opt, err := ToROption(anchor, rule)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// FromRRule maps an RRULE value onto a Rule for the given anchor. Only rules
// that repeat the anchor's own day, weekday position or ISO week are accepted.
func FromRRule(anchor TimeRange, value string) (Rule, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrUnsupportedRule, err)
	}
	unsupported := func(format string, args ...any) (Rule, error) {
		return Rule{}, fmt.Errorf("%w: %s: %s", ErrUnsupportedRule, value, fmt.Sprintf(format, args...))
	}

	if len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byeaster) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		return unsupported("BYSETPOS, BYYEARDAY, BYEASTER and time-of-day parts are not supported")
	}

	start := anchor.Start.UTC()
	rule := Rule{Interval: uint32(max(opt.Interval, 1))}

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Bymonth)+len(opt.Bymonthday)+len(opt.Byweekday)+len(opt.Byweekno) > 0 {
			return unsupported("daily rules take no BY parts")
		}
		rule.Kind = KindDaily

	case rrule.WEEKLY:
		if len(opt.Bymonth)+len(opt.Bymonthday)+len(opt.Byweekno) > 0 {
			return unsupported("weekly rules only take BYDAY")
		}
		if opt.Wkst != rrule.MO {
			return unsupported("weeks must start on Monday")
		}
		rule.Kind = KindWeekly
		if len(opt.Byweekday) == 0 {
			rule.WeekMap = WeekMapOf(start.Weekday())
		}
		for _, w := range opt.Byweekday {
			if w.N() != 0 {
				return unsupported("weekly BYDAY cannot be indexed")
			}
			rule.WeekMap |= WeekMapOf(fromRRuleWeekday(w))
		}

	case rrule.MONTHLY:
		if len(opt.Bymonth)+len(opt.Byweekno) > 0 {
			return unsupported("monthly rules take BYMONTHDAY or one indexed BYDAY")
		}
		rule.Kind = KindMonthly
		switch {
		case len(opt.Byweekday) == 0 && (len(opt.Bymonthday) == 0 || sameInts(opt.Bymonthday, start.Day())):
			rule.ByDay = true
		case len(opt.Bymonthday) == 0 && len(opt.Byweekday) == 1 &&
			fromRRuleWeekday(opt.Byweekday[0]) == start.Weekday() &&
			opt.Byweekday[0].N() == (start.Day()-1)/7+1:
			rule.ByDay = false
		default:
			return unsupported("monthly parts must match the anchor %s", start.Format(time.DateOnly))
		}

	case rrule.YEARLY:
		rule.Kind = KindYearly
		_, week := start.ISOWeek()
		switch {
		case len(opt.Byweekno) == 0 && len(opt.Byweekday) == 0 &&
			(len(opt.Bymonth) == 0 || sameInts(opt.Bymonth, int(start.Month()))) &&
			(len(opt.Bymonthday) == 0 || sameInts(opt.Bymonthday, start.Day())):
			rule.ByDay = true
		case len(opt.Bymonth) == 0 && len(opt.Bymonthday) == 0 &&
			sameInts(opt.Byweekno, week) && len(opt.Byweekday) == 1 &&
			opt.Byweekday[0].N() == 0 && fromRRuleWeekday(opt.Byweekday[0]) == start.Weekday():
			rule.ByDay = false
		default:
			return unsupported("yearly parts must match the anchor %s", start.Format(time.DateOnly))
		}

	default:
		return unsupported("frequency %s", opt.Freq)
	}

	switch {
	case opt.Count > 1:
		rule.Termination = Count(uint32(opt.Count - 1))
	case opt.Count == 1:
		rule.Termination = Until(anchor.End)
	case !opt.Until.IsZero():
		rule.Termination = Until(opt.Until.Add(anchor.Duration()))
	default:
		return unsupported("unbounded rules need COUNT or UNTIL")
	}

	if err := ValidateSeries(anchor, rule); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func sameInts(values []int, want int) bool {
	return len(values) == 1 && values[0] == want
}
