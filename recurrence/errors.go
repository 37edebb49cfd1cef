package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRule is returned when a rule or its anchor fails validation
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrArithmeticOverflow is returned when calendar math leaves the representable range
	ErrArithmeticOverflow = errors.New("calendar arithmetic overflow")
	// ErrUnsupportedRule is returned when an RRULE uses features outside the supported subset
	ErrUnsupportedRule = errors.New("unsupported recurrence rule")
	// ErrInvalidWindow is returned when a query window ends before it starts
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrTooManyOccurrences is returned when an expansion exceeds the engine limit
	ErrTooManyOccurrences = errors.New("too many occurrences")
)

// RuleError describes which part of a rule failed validation.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidRule, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidRule.
func (e *RuleError) Unwrap() error {
	return ErrInvalidRule
}

func overflowf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArithmeticOverflow, fmt.Sprintf(format, args...))
}
