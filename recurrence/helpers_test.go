package recurrence

import "time"

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

// span builds an occurrence of length d starting at start.
func span(start time.Time, d time.Duration) TimeRange {
	return TimeRange{Start: start, End: start.Add(d)}
}

func startDates(occurrences []TimeRange) []string {
	out := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		out = append(out, occ.Start.Format(time.DateOnly))
	}
	return out
}
