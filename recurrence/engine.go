package recurrence

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/mo"
)

// Engine provides validated, cached and logged access to the recurrence functions
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
	logger *slog.Logger
}

// Option represents a configuration option for the Engine
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache makes the engine use an existing cache instead of creating one
func WithCache(cache *RecurrenceCache) Option {
	return func(e *Engine) {
		if cache != nil {
			e.cache = cache
		}
	}
}

// NewEngine creates a new recurrence engine with DefaultEngineConfig
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

func newEngine(config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() EngineConfig {
	return e.config
}

// CacheStats reports cache statistics, or zero values when caching is off
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// Close releases the cache
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Expand returns the occurrences of a series overlapping window
func (e *Engine) Expand(anchor TimeRange, rule Rule, window TimeRange) ([]TimeRange, error) {
	if e.cache != nil {
		if occurrences, ok := e.cache.Get(anchor, rule, window); ok {
			e.logger.Debug("expansion cache hit", "rule", rule.String(), "window", window.String())
			return slices.Clone(occurrences), nil
		}
	}

	limit := e.config.MaxOccurrences
	var occurrences []TimeRange
	var tooMany bool
	err := expand(anchor, rule, window, func(occ TimeRange) bool {
		if limit > 0 && len(occurrences) >= limit {
			tooMany = true
			return false
		}
		occurrences = append(occurrences, occ)
		return true
	})
	if err != nil {
		e.logger.Warn("expansion failed", "rule", rule.String(), "window", window.String(), "error", err)
		return nil, err
	}
	if tooMany {
		e.logger.Warn("expansion exceeded limit", "rule", rule.String(), "limit", limit)
		return nil, fmt.Errorf("%w: more than %d in %s", ErrTooManyOccurrences, limit, window)
	}

	e.logger.Debug("expanded series",
		"rule", rule.String(),
		"window", window.String(),
		"occurrences", len(occurrences))

	if e.cache != nil {
		e.cache.Set(anchor, rule, window, slices.Clone(occurrences))
	}
	return occurrences, nil
}

// HasOccurrenceInRange reports whether any occurrence overlaps window without
// materializing the expansion
func (e *Engine) HasOccurrenceInRange(anchor TimeRange, rule Rule, window TimeRange) (bool, error) {
	found := false
	err := expand(anchor, rule, window, func(TimeRange) bool {
		found = true
		return false
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// CountToUntil converts an ordinal to the end of its occurrence
func (e *Engine) CountToUntil(anchor TimeRange, rule Rule, n uint32) (time.Time, error) {
	until, err := CountToUntil(anchor, rule, n)
	if err != nil {
		e.logger.Warn("count to until failed", "rule", rule.String(), "count", n, "error", err)
		return time.Time{}, err
	}
	return until, nil
}

// UntilToCount converts an instant to the ordinal of the last occurrence ending by it
func (e *Engine) UntilToCount(anchor TimeRange, rule Rule, until time.Time) (uint32, error) {
	n, err := UntilToCount(anchor, rule, until)
	if err != nil {
		e.logger.Warn("until to count failed", "rule", rule.String(), "until", until, "error", err)
		return 0, err
	}
	return n, nil
}

// Prev returns the latest occurrence starting at or before t
func (e *Engine) Prev(anchor TimeRange, rule Rule, t time.Time) (mo.Option[TimeRange], error) {
	return Prev(anchor, rule, t)
}

// Next returns the earliest occurrence not yet ended at t
func (e *Engine) Next(anchor TimeRange, rule Rule, t time.Time) (mo.Option[TimeRange], error) {
	return Next(anchor, rule, t)
}

// Terminal returns the end of the last occurrence
func (e *Engine) Terminal(anchor TimeRange, rule Rule) (time.Time, error) {
	return TerminalInstant(anchor, rule)
}
