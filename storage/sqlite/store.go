package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cyp0633/librecur/override"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/samber/mo"
)

// timeLayout is fixed-width so that text comparison in SQL orders by time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements storage.Store on top of DB.
type Store struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for creation and deletion stamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New runs pending migrations on db and returns a store backed by it.
func New(ctx context.Context, db *DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := Migrate(ctx, db, s.logger); err != nil {
		return nil, err
	}
	return s, nil
}

// Open is OpenDB followed by New.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t mo.Option[time.Time]) sql.NullString {
	v, ok := t.Get()
	if !ok {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(v), Valid: true}
}

func optionalTime(ns sql.NullString) (mo.Option[time.Time], error) {
	if !ns.Valid {
		return mo.None[time.Time](), nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return mo.None[time.Time](), err
	}
	return mo.Some(t), nil
}

func nullString(s mo.Option[string]) sql.NullString {
	v, ok := s.Get()
	return sql.NullString{String: v, Valid: ok}
}

func optionalString(ns sql.NullString) mo.Option[string] {
	if !ns.Valid {
		return mo.None[string]()
	}
	return mo.Some(ns.String)
}

// ruleColumns flattens an optional rule into its nullable columns.
type ruleColumns struct {
	Kind     sql.NullString
	Interval sql.NullInt64
	WeekMap  sql.NullInt64
	ByDay    sql.NullBool
	Count    sql.NullInt64
	Until    sql.NullString
}

func encodeRule(r mo.Option[recurrence.Rule]) ruleColumns {
	rule, ok := r.Get()
	if !ok {
		return ruleColumns{}
	}
	cols := ruleColumns{
		Kind:     sql.NullString{String: rule.Kind.String(), Valid: true},
		Interval: sql.NullInt64{Int64: int64(rule.Interval), Valid: true},
		WeekMap:  sql.NullInt64{Int64: int64(rule.WeekMap), Valid: true},
		ByDay:    sql.NullBool{Bool: rule.ByDay, Valid: true},
	}
	if n, ok := rule.Termination.Count.Get(); ok {
		cols.Count = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	cols.Until = nullTime(rule.Termination.Until)
	return cols
}

func (c ruleColumns) decode() (mo.Option[recurrence.Rule], error) {
	if !c.Kind.Valid {
		return mo.None[recurrence.Rule](), nil
	}
	kind, err := recurrence.ParseKind(c.Kind.String)
	if err != nil {
		return mo.None[recurrence.Rule](), err
	}
	rule := recurrence.Rule{
		Kind:     kind,
		Interval: uint32(c.Interval.Int64),
		WeekMap:  recurrence.WeekMap(c.WeekMap.Int64),
		ByDay:    c.ByDay.Bool,
	}
	if c.Count.Valid {
		rule.Termination = recurrence.Count(uint32(c.Count.Int64))
	}
	until, err := optionalTime(c.Until)
	if err != nil {
		return mo.None[recurrence.Rule](), err
	}
	if u, ok := until.Get(); ok {
		rule.Termination = recurrence.Until(u)
	}
	return mo.Some(rule), nil
}

// Event operations

func (s *Store) CreateEvent(ctx context.Context, event *storage.Event) error {
	if err := event.Prepare(s.now()); err != nil {
		s.logger.Warn("failed to create event: invalid input", "error", err)
		return err
	}

	rule := encodeRule(event.Rule)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, name, description, start_at, end_at,
			rule_kind, rule_interval, rule_week_map, rule_by_day, rule_count, rule_until,
			entries_end, created_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID.String(), event.Name, event.Description,
		formatTime(event.Anchor.Start), formatTime(event.Anchor.End),
		rule.Kind, rule.Interval, rule.WeekMap, rule.ByDay, rule.Count, rule.Until,
		formatTime(event.EntriesEnd), formatTime(event.CreatedAt), nullTime(event.DeletedAt),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			s.logger.Warn("failed to create event: already exists", "event_id", event.ID)
			return &storage.Error{Type: storage.ErrAlreadyExists, Message: "event already exists", Err: err}
		}
		return fmt.Errorf("inserting event: %w", err)
	}

	s.logger.Debug("event created", "event_id", event.ID, "entries_end", event.EntriesEnd)
	return nil
}

const eventColumns = `
	id, name, description, start_at, end_at,
	rule_kind, rule_interval, rule_week_map, rule_by_day, rule_count, rule_until,
	entries_end, created_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (storage.Event, error) {
	var (
		event                                   storage.Event
		id, startAt, endAt, entriesEnd, created string
		deleted                                 sql.NullString
		rule                                    ruleColumns
	)
	err := row.Scan(
		&id, &event.Name, &event.Description, &startAt, &endAt,
		&rule.Kind, &rule.Interval, &rule.WeekMap, &rule.ByDay, &rule.Count, &rule.Until,
		&entriesEnd, &created, &deleted,
	)
	if err != nil {
		return event, err
	}

	if event.ID, err = uuid.Parse(id); err != nil {
		return event, fmt.Errorf("parsing event id: %w", err)
	}
	if event.Anchor.Start, err = parseTime(startAt); err != nil {
		return event, err
	}
	if event.Anchor.End, err = parseTime(endAt); err != nil {
		return event, err
	}
	if event.EntriesEnd, err = parseTime(entriesEnd); err != nil {
		return event, err
	}
	if event.CreatedAt, err = parseTime(created); err != nil {
		return event, err
	}
	if event.DeletedAt, err = optionalTime(deleted); err != nil {
		return event, err
	}
	if event.Rule, err = rule.decode(); err != nil {
		return event, err
	}
	return event, nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (*storage.Event, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? AND deleted_at IS NULL", id.String())
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return &event, nil
}

func (s *Store) ListEventsInRange(ctx context.Context, window recurrence.TimeRange, ids ...uuid.UUID) ([]storage.Event, error) {
	if err := window.Validate(); err != nil {
		return nil, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid window", Err: err}
	}

	ws, we := formatTime(window.Start), formatTime(window.End)
	// An event whose span is empty occupies only its start instant.
	query := "SELECT " + eventColumns + ` FROM events
		WHERE deleted_at IS NULL
		AND start_at < ?
		AND (entries_end > ? OR (entries_end = start_at AND start_at >= ?))`
	args := []any{we, ws, ws}
	if len(ids) > 0 {
		query += " AND id IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"
		for _, id := range ids {
			args = append(args, id.String())
		}
	}
	query += " ORDER BY start_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE events SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
		formatTime(s.now()), id.String())
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	if n == 0 {
		return storage.NotFound(id)
	}

	s.logger.Info("event deleted", "event_id", id)
	return nil
}

// Override operations

func (s *Store) CreateOverride(ctx context.Context, o *override.Override) error {
	if err := storage.PrepareOverride(o, s.now()); err != nil {
		return err
	}

	var replStart, replEnd sql.NullString
	if r, ok := o.Replacement.Get(); ok {
		replStart = sql.NullString{String: formatTime(r.Start), Valid: true}
		replEnd = sql.NullString{String: formatTime(r.End), Valid: true}
	}
	patch, hasPatch := o.Patch.Get()

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM events WHERE id = ? AND deleted_at IS NULL", o.EventID.String()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotFound(o.EventID)
		}
		if err != nil {
			return fmt.Errorf("querying event: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO event_overrides (
				event_id, original_start, original_end, replacement_start, replacement_end,
				name, description, has_patch, created_at, deleted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			o.EventID.String(), formatTime(o.Original.Start), formatTime(o.Original.End),
			replStart, replEnd,
			nullString(patch.Name), nullString(patch.Description), hasPatch,
			formatTime(o.CreatedAt), nullTime(o.DeletedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting override: %w", err)
		}

		s.logger.Debug("override created", "event_id", o.EventID, "original", o.Original.String())
		return nil
	})
}

func (s *Store) ListOverrides(ctx context.Context, eventIDs []uuid.UUID) ([]override.Override, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, original_start, original_end, replacement_start, replacement_end,
			name, description, has_patch, created_at, deleted_at
		FROM event_overrides
		WHERE event_id IN (?`+strings.Repeat(", ?", len(eventIDs)-1)+`)
		ORDER BY original_start, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying overrides: %w", err)
	}
	defer rows.Close()

	var out []override.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOverride(row scanner) (override.Override, error) {
	var (
		o                           override.Override
		eventID, origStart, origEnd string
		created                     string
		replStart, replEnd, deleted sql.NullString
		name, description           sql.NullString
		hasPatch                    bool
	)
	err := row.Scan(&eventID, &origStart, &origEnd, &replStart, &replEnd,
		&name, &description, &hasPatch, &created, &deleted)
	if err != nil {
		return o, err
	}

	if o.EventID, err = uuid.Parse(eventID); err != nil {
		return o, fmt.Errorf("parsing event id: %w", err)
	}
	if o.Original.Start, err = parseTime(origStart); err != nil {
		return o, err
	}
	if o.Original.End, err = parseTime(origEnd); err != nil {
		return o, err
	}
	if replStart.Valid && replEnd.Valid {
		var r recurrence.TimeRange
		if r.Start, err = parseTime(replStart.String); err != nil {
			return o, err
		}
		if r.End, err = parseTime(replEnd.String); err != nil {
			return o, err
		}
		o.Replacement = mo.Some(r)
	}
	if hasPatch {
		o.Patch = mo.Some(override.Patch{
			Name:        optionalString(name),
			Description: optionalString(description),
		})
	}
	if o.CreatedAt, err = parseTime(created); err != nil {
		return o, err
	}
	if o.DeletedAt, err = optionalTime(deleted); err != nil {
		return o, err
	}
	return o, nil
}
