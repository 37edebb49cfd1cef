package recurrence

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Kind selects how a rule steps from one period to the next.
type Kind int

const (
	KindDaily Kind = iota
	KindWeekly
	KindMonthly
	KindYearly
)

// String provides a human-readable representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindMonthly:
		return "monthly"
	case KindYearly:
		return "yearly"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String, case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return KindDaily, nil
	case "weekly":
		return KindWeekly, nil
	case "monthly":
		return KindMonthly, nil
	case "yearly":
		return KindYearly, nil
	}
	return 0, &RuleError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

// WeekMap is a 7-bit weekday set. Bit 6 is Monday and bit 0 is Sunday, so the
// binary rendering reads Monday first.
type WeekMap uint8

// WeekMapOf builds a WeekMap from weekdays.
func WeekMapOf(days ...time.Weekday) WeekMap {
	var m WeekMap
	for _, d := range days {
		m |= 1 << (6 - mondayIndex(d))
	}
	return m
}

// ParseWeekMap accepts either a 7-character binary string ("1010110") or a decimal value.
func ParseWeekMap(s string) (WeekMap, error) {
	s = strings.TrimSpace(s)
	base := 10
	if len(s) == 7 && strings.Trim(s, "01") == "" {
		base = 2
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil || v > 127 {
		return 0, &RuleError{Field: "week_map", Reason: fmt.Sprintf("cannot parse %q", s)}
	}
	return WeekMap(v), nil
}

// Has reports whether d is active.
func (m WeekMap) Has(d time.Weekday) bool {
	return m&(1<<(6-mondayIndex(d))) != 0
}

// Count returns the number of active weekdays.
func (m WeekMap) Count() int {
	return bits.OnesCount8(uint8(m & 0x7f))
}

// Days lists active weekdays from Monday to Sunday.
func (m WeekMap) Days() []time.Weekday {
	days := make([]time.Weekday, 0, m.Count())
	for i := 0; i < 7; i++ {
		d := time.Weekday((i + 1) % 7)
		if m.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (m WeekMap) String() string {
	return fmt.Sprintf("%07b", uint8(m))
}

// Termination is the rule's own stop condition. Exactly one field is set.
type Termination struct {
	// Count is the number of repetitions after the anchor
	Count mo.Option[uint32]
	// Until bounds the end of the last occurrence
	Until mo.Option[time.Time]
}

// Count ends a series after n repetitions of the anchor.
func Count(n uint32) Termination {
	return Termination{Count: mo.Some(n)}
}

// Until ends a series with the last occurrence ending at or before t.
func Until(t time.Time) Termination {
	return Termination{Until: mo.Some(t)}
}

func (t Termination) String() string {
	if n, ok := t.Count.Get(); ok {
		return fmt.Sprintf("count=%d", n)
	}
	if u, ok := t.Until.Get(); ok {
		return "until=" + u.UTC().Format(time.RFC3339Nano)
	}
	return "unterminated"
}

// Rule is an immutable recurrence rule. WeekMap only applies to KindWeekly and
// ByDay only to KindMonthly and KindYearly.
type Rule struct {
	Kind        Kind
	Interval    uint32
	Termination Termination
	WeekMap     WeekMap
	// ByDay repeats on the same day number; otherwise on the same weekday position
	ByDay bool
}

func Daily(interval uint32, end Termination) Rule {
	return Rule{Kind: KindDaily, Interval: interval, Termination: end}
}

func Weekly(interval uint32, weekMap WeekMap, end Termination) Rule {
	return Rule{Kind: KindWeekly, Interval: interval, Termination: end, WeekMap: weekMap}
}

func Monthly(interval uint32, byDay bool, end Termination) Rule {
	return Rule{Kind: KindMonthly, Interval: interval, Termination: end, ByDay: byDay}
}

func Yearly(interval uint32, byDay bool, end Termination) Rule {
	return Rule{Kind: KindYearly, Interval: interval, Termination: end, ByDay: byDay}
}

// Validate rejects rules that can never produce a well-defined series.
func (r Rule) Validate() error {
	if err := r.validateStep(); err != nil {
		return err
	}

	count, hasCount := r.Termination.Count.Get()
	_, hasUntil := r.Termination.Until.Get()
	switch {
	case hasCount && hasUntil:
		return &RuleError{Field: "termination", Reason: "both count and until set"}
	case !hasCount && !hasUntil:
		return &RuleError{Field: "termination", Reason: "missing count or until"}
	case hasCount && count == 0:
		return &RuleError{Field: "count", Reason: "must be at least 1"}
	}
	return nil
}

// validateStep checks everything but the termination.
func (r Rule) validateStep() error {
	switch r.Kind {
	case KindDaily, KindMonthly, KindYearly:
	case KindWeekly:
		if r.WeekMap == 0 {
			return &RuleError{Field: "week_map", Reason: "no active weekday"}
		}
		if r.WeekMap > 0x7f {
			return &RuleError{Field: "week_map", Reason: fmt.Sprintf("value %d exceeds 7 bits", r.WeekMap)}
		}
	default:
		return &RuleError{Field: "kind", Reason: r.Kind.String()}
	}
	if r.Interval == 0 {
		return &RuleError{Field: "interval", Reason: "must be at least 1"}
	}
	return nil
}

func (r Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%d", r.Kind, r.Interval)
	switch r.Kind {
	case KindWeekly:
		fmt.Fprintf(&b, " week_map=%s", r.WeekMap)
	case KindMonthly, KindYearly:
		fmt.Fprintf(&b, " by_day=%t", r.ByDay)
	}
	fmt.Fprintf(&b, " %s", r.Termination)
	return b.String()
}

// ValidateSeries checks the rule together with its anchor.
func ValidateSeries(anchor TimeRange, rule Rule) error {
	if err := validateAnchor(anchor); err != nil {
		return err
	}
	return rule.Validate()
}

func validateAnchor(anchor TimeRange) error {
	if anchor.End.Before(anchor.Start) {
		return &RuleError{Field: "anchor", Reason: "ends before it starts"}
	}
	return checkYear(anchor.Start.UTC().Year())
}
