package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighbors(t *testing.T) {
	anchor := span(date(2022, 12, 1, 12, 0), time.Hour)
	rule := Monthly(1, true, Until(date(2023, 4, 1, 13, 0)))
	month := func(y int, m time.Month) mo.Option[TimeRange] {
		return mo.Some(span(date(y, m, 1, 12, 0), time.Hour))
	}
	none := mo.None[TimeRange]()
	justBefore := time.Date(2022, 12, 1, 11, 59, 59, 0, time.UTC)

	t.Run("prev", func(t *testing.T) {
		tests := []struct {
			at   time.Time
			want mo.Option[TimeRange]
		}{
			{justBefore, none},
			{date(2022, 12, 1, 12, 0), month(2022, 12)},
			{date(2023, 2, 1, 12, 0), month(2023, 2)},
			{date(2023, 2, 28, 12, 0), month(2023, 2)},
			{date(2023, 5, 1, 14, 0), month(2023, 4)},
			{date(2030, 1, 1, 0, 0), month(2023, 4)},
		}
		for _, tt := range tests {
			got, err := Prev(anchor, rule, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "prev(%s)", tt.at)
		}
	})

	t.Run("next", func(t *testing.T) {
		tests := []struct {
			at   time.Time
			want mo.Option[TimeRange]
		}{
			{justBefore, month(2022, 12)},
			{date(2020, 1, 1, 0, 0), month(2022, 12)},
			{date(2023, 2, 1, 12, 0), month(2023, 2)},
			{date(2023, 2, 1, 12, 59), month(2023, 2)},
			{date(2023, 2, 1, 13, 0), month(2023, 3)},
			{date(2023, 4, 1, 12, 30), month(2023, 4)},
			{date(2023, 4, 1, 13, 0), none},
			{date(2023, 5, 1, 14, 0), none},
		}
		for _, tt := range tests {
			got, err := Next(anchor, rule, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "next(%s)", tt.at)
		}
	})
}

func TestNeighborsSkipShortMonths(t *testing.T) {
	anchor := span(date(2023, 1, 31, 9, 0), time.Hour)
	rule := Monthly(1, true, Count(10))

	prev, err := Prev(anchor, rule, date(2023, 3, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, mo.Some(span(date(2023, 1, 31, 9, 0), time.Hour)), prev)

	next, err := Next(anchor, rule, date(2023, 2, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, mo.Some(span(date(2023, 3, 31, 9, 0), time.Hour)), next)
}

func TestNeighborsUnboundedCount(t *testing.T) {
	// A count beyond the calendar leaves no terminal, so lookups near the
	// anchor still work.
	anchor := span(date(2023, 3, 1, 9, 0), time.Hour)
	rule := Daily(1, Count(4_000_000_000))

	next, err := Next(anchor, rule, date(2023, 3, 5, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, mo.Some(span(date(2023, 3, 6, 9, 0), time.Hour)), next)

	prev, err := Prev(anchor, rule, date(2023, 3, 5, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, mo.Some(span(date(2023, 3, 5, 9, 0), time.Hour)), prev)
}

func TestNeighborsInvalidRule(t *testing.T) {
	anchor := span(date(2023, 3, 1, 9, 0), time.Hour)

	_, err := Prev(anchor, Weekly(1, 0, Count(3)), anchor.Start)
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = Next(anchor, Daily(1, Termination{}), anchor.Start)
	assert.ErrorIs(t, err, ErrInvalidRule)
}
