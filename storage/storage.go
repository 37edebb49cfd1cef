// Package storage defines how recurring events and their overrides are persisted.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Store connects a persistence backend with the agenda. Please use the error types provided.
type Store interface {
	// CreateEvent validates and inserts an event, filling ID, CreatedAt and EntriesEnd when unset.
	CreateEvent(ctx context.Context, event *Event) error
	// GetEvent finds a live event by ID.
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	// ListEventsInRange returns live events whose span overlaps window, optionally restricted to ids.
	ListEventsInRange(ctx context.Context, window recurrence.TimeRange, ids ...uuid.UUID) ([]Event, error)
	// DeleteEvent soft-deletes an event.
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	// CreateOverride attaches an override to an existing event.
	CreateOverride(ctx context.Context, o *override.Override) error
	// ListOverrides returns the overrides of the given events ordered by original start.
	ListOverrides(ctx context.Context, eventIDs []uuid.UUID) ([]override.Override, error)
}

// Event is a stored series: an anchor occurrence and an optional rule. An
// event without a rule occurs once.
type Event struct {
	ID          uuid.UUID
	Name        string
	Description string
	Anchor      recurrence.TimeRange
	Rule        mo.Option[recurrence.Rule]
	CreatedAt   time.Time
	DeletedAt   mo.Option[time.Time]
	// EntriesEnd is the end of the last occurrence, derived from the rule
	EntriesEnd time.Time
}

// Span covers every occurrence of the event.
func (e Event) Span() recurrence.TimeRange {
	return recurrence.TimeRange{Start: e.Anchor.Start, End: e.EntriesEnd}
}

// EndOfTime stands in for EntriesEnd when a count runs past the calendar.
var EndOfTime = time.Date(recurrence.MaxYear, time.December, 31, 23, 59, 59, 999999999, time.UTC)

// Prepare validates the event and fills the fields a store derives.
func (e *Event) Prepare(now time.Time) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.Anchor = e.Anchor.UTC()

	rule, ok := e.Rule.Get()
	if !ok {
		if err := e.Anchor.Validate(); err != nil {
			return &Error{Type: ErrInvalidInput, Message: "invalid event anchor", Err: err}
		}
		e.EntriesEnd = e.Anchor.End
		return nil
	}

	end, err := recurrence.TerminalInstant(e.Anchor, rule)
	switch {
	case errors.Is(err, recurrence.ErrArithmeticOverflow):
		e.EntriesEnd = EndOfTime
	case err != nil:
		return &Error{Type: ErrInvalidInput, Message: "invalid recurrence rule", Err: err}
	default:
		e.EntriesEnd = end
	}
	return nil
}

// PrepareOverride validates an override and stamps its creation time.
func PrepareOverride(o *override.Override, now time.Time) error {
	if err := o.Validate(); err != nil {
		return &Error{Type: ErrInvalidInput, Message: "invalid override", Err: err}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.Original = o.Original.UTC()
	return nil
}

// ErrorType represents the type of storage error. It is also a sentinel
// usable with errors.Is.
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

func (t ErrorType) Error() string {
	return string(t)
}

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is matches the error's type against an ErrorType sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(ErrorType)
	return ok && t == e.Type
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds an ErrNotFound error for a missing event.
func NotFound(id uuid.UUID) error {
	return &Error{Type: ErrNotFound, Message: fmt.Sprintf("event %s not found", id)}
}
