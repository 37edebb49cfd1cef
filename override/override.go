// Package override applies per-occurrence exceptions to expanded series.
package override

import (
	"errors"
	"fmt"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Patch replaces the descriptive fields of an occurrence
type Patch struct {
	Name        mo.Option[string]
	Description mo.Option[string]
}

// Override is an exception to the occurrences of one event that lie inside
// Original. It can move them, rename them or soft-delete them.
type Override struct {
	EventID     uuid.UUID
	Original    recurrence.TimeRange
	Replacement mo.Option[recurrence.TimeRange]
	Patch       mo.Option[Patch]
	DeletedAt   mo.Option[time.Time]
	CreatedAt   time.Time
}

// Applies reports whether occ lies inside the override's original window.
func (o Override) Applies(occ recurrence.TimeRange) bool {
	return o.Original.Contains(occ)
}

// Deleted reports whether the override removes its occurrences.
func (o Override) Deleted() bool {
	return o.DeletedAt.IsPresent()
}

// Validate checks both windows.
func (o Override) Validate() error {
	if o.EventID == uuid.Nil {
		return errors.New("override has no event ID")
	}
	if err := o.Original.Validate(); err != nil {
		return fmt.Errorf("override original window: %w", err)
	}
	if r, ok := o.Replacement.Get(); ok {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("override replacement window: %w", err)
		}
	}
	return nil
}

// Entry is one occurrence of an event as the caller sees it.
type Entry struct {
	EventID  uuid.UUID
	Original recurrence.TimeRange
	Override mo.Option[Override]
}

// Window returns where the entry actually takes place.
func (e Entry) Window() recurrence.TimeRange {
	if o, ok := e.Override.Get(); ok {
		if r, ok := o.Replacement.Get(); ok {
			return r
		}
	}
	return e.Original
}

// Deleted reports whether an override soft-deleted this entry.
func (e Entry) Deleted() bool {
	o, ok := e.Override.Get()
	return ok && o.Deleted()
}

// Describe returns the entry's name and description, taking the override's
// patch into account.
func (e Entry) Describe(name, description string) (string, string) {
	o, ok := e.Override.Get()
	if !ok {
		return name, description
	}
	p, ok := o.Patch.Get()
	if !ok {
		return name, description
	}
	return p.Name.OrElse(name), p.Description.OrElse(description)
}
