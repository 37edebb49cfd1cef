package recurrence

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_HasOccurrenceInRange(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	// Daily meeting from 9-10 AM starting Jan 1, 2024
	anchor := span(date(2024, 1, 1, 9, 0), time.Hour)

	tests := []struct {
		name     string
		rule     Rule
		window   TimeRange
		expected bool
	}{
		{
			name:     "Occurrence in range",
			rule:     Daily(1, Count(6)),
			window:   TimeRange{Start: date(2024, 1, 3, 0, 0), End: date(2024, 1, 4, 0, 0)},
			expected: true,
		},
		{
			name:     "No occurrence after the series ends",
			rule:     Daily(1, Count(2)),
			window:   TimeRange{Start: date(2024, 1, 10, 0, 0), End: date(2024, 1, 11, 0, 0)},
			expected: false,
		},
		{
			name:     "Gap between occurrences",
			rule:     Daily(3, Count(5)),
			window:   TimeRange{Start: date(2024, 1, 2, 0, 0), End: date(2024, 1, 4, 0, 0)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.HasOccurrenceInRange(anchor, tt.rule, tt.window)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEngine_ExpandUsesCache(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := NewEngine(WithLogger(logger))
	defer engine.Close()

	anchor := span(date(2024, 1, 1, 9, 0), time.Hour)
	rule := Weekly(1, WeekMapOf(time.Monday, time.Thursday), Count(10))
	window := TimeRange{Start: date(2024, 1, 1, 0, 0), End: date(2024, 2, 1, 0, 0)}

	first, err := engine.Expand(anchor, rule, window)
	require.NoError(t, err)
	require.Len(t, first, 9)

	// Mutating a result must not leak into the cache.
	first[0] = TimeRange{}

	second, err := engine.Expand(anchor, rule, window)
	require.NoError(t, err)
	assert.Equal(t, anchor, second[0])

	stats := engine.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Contains(t, logs.String(), "expansion cache hit")
}

func TestEngine_MaxOccurrences(t *testing.T) {
	cfg := DisabledCacheConfig
	cfg.MaxOccurrences = 5
	engine := NewEngineWithConfig(cfg)
	defer engine.Close()

	anchor := span(date(2024, 1, 1, 9, 0), time.Hour)
	window := TimeRange{Start: date(2024, 1, 1, 0, 0), End: date(2024, 1, 31, 0, 0)}

	_, err := engine.Expand(anchor, Daily(1, Count(100)), window)
	assert.ErrorIs(t, err, ErrTooManyOccurrences)

	got, err := engine.Expand(anchor, Daily(1, Count(4)), window)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	assert.Equal(t, CacheStats{}, engine.CacheStats())
}

func TestEngine_Conversions(t *testing.T) {
	engine := NewEngine(WithCache(NewRecurrenceCache(LowMemoryConfig.CacheConfig)))
	defer engine.Close()

	anchor := span(date(2022, 12, 1, 12, 0), time.Hour)
	rule := Monthly(1, true, Until(date(2023, 4, 1, 13, 0)))

	until, err := engine.CountToUntil(anchor, rule, 2)
	require.NoError(t, err)
	assert.Equal(t, date(2023, 2, 1, 13, 0), until)

	n, err := engine.UntilToCount(anchor, rule, until)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	terminal, err := engine.Terminal(anchor, rule)
	require.NoError(t, err)
	assert.Equal(t, date(2023, 4, 1, 13, 0), terminal)

	prev, err := engine.Prev(anchor, rule, date(2023, 2, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2023, 2, 1, 12, 0), prev.MustGet().Start)

	next, err := engine.Next(anchor, rule, date(2023, 2, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, date(2023, 3, 1, 12, 0), next.MustGet().Start)

	_, err = engine.CountToUntil(anchor, Daily(0, Count(1)), 1)
	assert.ErrorIs(t, err, ErrInvalidRule)
}
