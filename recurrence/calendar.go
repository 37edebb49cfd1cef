package recurrence

import (
	"time"
)

// Representable calendar years. Anything outside is reported as ErrArithmeticOverflow.
const (
	MinYear = 1
	MaxYear = 9999
)

const secondsPerDay = 24 * 60 * 60

// WeekdayDistance returns the forward distance in days from one weekday to another, in [0, 6].
func WeekdayDistance(from, to time.Weekday) int {
	return (int(to) - int(from) + 7) % 7
}

// mondayIndex numbers weekdays from Monday (0) to Sunday (6).
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeap(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// AddMonths adds n months to year/month, carrying into the year.
func AddMonths(year int, month time.Month, n int64) (int, time.Month, error) {
	const maxIndex = int64(MaxYear)*12 + 11
	idx := int64(year)*12 + int64(month-1)
	if n > maxIndex-idx || n < int64(MinYear)*12-idx {
		return 0, 0, overflowf("adding %d months to %04d-%02d", n, year, month)
	}
	idx += n
	return int(idx / 12), time.Month(idx%12) + 1, nil
}

// ISOWeeksInYear returns 53 for long ISO years and 52 otherwise.
func ISOWeeksInYear(year int) int {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Weekday()
	if jan1 == time.Thursday || (jan1 == time.Wednesday && IsLeap(year)) {
		return 53
	}
	return 52
}

// ISOWeekStart returns midnight UTC of the Monday that starts ISO week 1 of year.
func ISOWeekStart(year int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return jan4.AddDate(0, 0, -mondayIndex(jan4.Weekday()))
}

func checkYear(year int) error {
	if year < MinYear || year > MaxYear {
		return overflowf("year %d out of range", year)
	}
	return nil
}

// midnight truncates t to the start of its UTC day.
func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayNumber counts whole days since the Unix epoch for t's UTC date.
func dayNumber(t time.Time) int64 {
	return midnight(t).Unix() / secondsPerDay
}

// addDays moves a UTC midnight forward by n days with a range check.
func addDays(base time.Time, n int64) (time.Time, error) {
	const limit = int64(MaxYear+1) * 366
	if n > limit || n < -limit {
		return time.Time{}, overflowf("adding %d days to %s", n, base.Format(time.DateOnly))
	}
	t := time.Unix(base.Unix()+n*secondsPerDay, 0).UTC()
	if err := checkYear(t.Year()); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// scale multiplies a period index by the rule interval, failing once the
// product cannot be a calendar offset below limit.
func scale(j int64, interval uint32, limit int64) (int64, error) {
	if j != 0 && (j > limit/int64(interval) || j < -limit/int64(interval)) {
		return 0, overflowf("period %d with interval %d", j, interval)
	}
	return j * int64(interval), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
