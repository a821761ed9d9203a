package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lyrahub/internal/domain"
)

const eventColumns = `id, user_id, title, description, start_date, end_date, start_time, end_time,
	type, category, module, priority, location, color, completed, is_recurring,
	recurrence_frequency, recurrence_interval, recurrence_end_date, created_at, updated_at`

type EventFilter struct {
	UserID string
	// From and To bound the query window; both zero means no window.
	From time.Time
	To   time.Time
	Type string
}

func (d *Database) CreateEvent(ctx context.Context, event *domain.CalendarEvent) error {
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	freq, interval, until := recurrenceColumns(event)

	query := `insert into events (` + eventColumns + `)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.Title, event.Description,
		event.StartDate.UTC(), event.EndDate.UTC(), event.StartTime, event.EndTime,
		event.Type, event.Category, event.Module, event.Priority, event.Location, event.Color,
		event.Completed, event.IsRecurring,
		freq, interval, until, event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

func (d *Database) GetEvent(ctx context.Context, userID string, eventID string) (*domain.CalendarEvent, error) {
	query := `select ` + eventColumns + ` from events where id = ? and user_id = ?`

	event, err := scanEvent(d.db.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}

		return nil, fmt.Errorf("scan row: %w", err)
	}

	return event, nil
}

// UpdateEvent overwrites the stored event owned by event.UserID.
func (d *Database) UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()

	freq, interval, until := recurrenceColumns(event)

	query := `update events set
		title = ?, description = ?, start_date = ?, end_date = ?, start_time = ?, end_time = ?,
		type = ?, category = ?, module = ?, priority = ?, location = ?, color = ?,
		completed = ?, is_recurring = ?,
		recurrence_frequency = ?, recurrence_interval = ?, recurrence_end_date = ?,
		updated_at = ?
	where id = ? and user_id = ?`

	res, err := d.db.ExecContext(ctx, query,
		event.Title, event.Description, event.StartDate.UTC(), event.EndDate.UTC(),
		event.StartTime, event.EndTime,
		event.Type, event.Category, event.Module, event.Priority, event.Location, event.Color,
		event.Completed, event.IsRecurring,
		freq, interval, until,
		event.UpdatedAt, event.ID, event.UserID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	if err = requireAffected(res); err != nil {
		return fmt.Errorf("update event (id = %s): %w", event.ID, err)
	}

	return nil
}

func (d *Database) DeleteEvent(ctx context.Context, userID string, eventID string) error {
	res, err := d.db.ExecContext(ctx, "delete from events where id = ? and user_id = ?", eventID, userID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if err = requireAffected(res); err != nil {
		return fmt.Errorf("delete event (id = %s): %w", eventID, err)
	}

	return nil
}

// ListEvents returns the user's stored events. With a window, single events
// must start inside it and recurring series must be able to produce an
// occurrence inside it.
func (d *Database) ListEvents(ctx context.Context, filter EventFilter) ([]domain.CalendarEvent, error) {
	var (
		where []string
		args  []any
	)

	where = append(where, "user_id = ?")
	args = append(args, filter.UserID)

	if !filter.From.IsZero() || !filter.To.IsZero() {
		where = append(where, `(
			(is_recurring = 0 and start_date >= ? and start_date < ?)
			or (is_recurring = 1 and start_date < ?
				and (recurrence_end_date is null or recurrence_end_date > ?))
		)`)
		args = append(args,
			filter.From.UTC(), filter.To.UTC(),
			filter.To.UTC(), filter.From.UTC())
	}

	if t := strings.TrimSpace(filter.Type); t != "" && t != "all" {
		where = append(where, "type = ?")
		args = append(args, t)
	}

	query := `select ` + eventColumns + ` from events
	where ` + strings.Join(where, " and ") + `
	order by start_date`

	return d.queryEvents(ctx, "ListEvents", query, args...)
}

func (d *Database) ListUpcomingEvents(
	ctx context.Context,
	userID string,
	from time.Time,
	limit int,
) ([]domain.CalendarEvent, error) {
	query := `select ` + eventColumns + ` from events
	where user_id = ? and start_date >= ?
	order by start_date, start_time
	limit ?`

	return d.queryEvents(ctx, "ListUpcomingEvents", query, userID, from.UTC(), limit)
}

func (d *Database) queryEvents(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]domain.CalendarEvent, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	var events []domain.CalendarEvent
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan row: %w", scanErr)
		}

		events = append(events, *event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.CalendarEvent, error) {
	var (
		e        domain.CalendarEvent
		freq     sql.NullString
		interval sql.NullInt64
		until    sql.NullTime
	)

	err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &e.Description,
		&e.StartDate, &e.EndDate, &e.StartTime, &e.EndTime,
		&e.Type, &e.Category, &e.Module, &e.Priority, &e.Location, &e.Color,
		&e.Completed, &e.IsRecurring,
		&freq, &interval, &until,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if freq.Valid {
		e.Recurrence = &domain.Recurrence{
			Frequency: domain.Frequency(freq.String),
			Interval:  int(interval.Int64),
		}

		if until.Valid {
			t := until.Time
			e.Recurrence.EndDate = &t
		}
	}

	return &e, nil
}

func recurrenceColumns(event *domain.CalendarEvent) (sql.NullString, sql.NullInt64, sql.NullTime) {
	var (
		freq     sql.NullString
		interval sql.NullInt64
		until    sql.NullTime
	)

	if event.Recurrence == nil {
		return freq, interval, until
	}

	freq = sql.NullString{String: string(event.Recurrence.Frequency), Valid: true}
	interval = sql.NullInt64{Int64: int64(max(event.Recurrence.Interval, 1)), Valid: true}

	if event.Recurrence.EndDate != nil {
		until = sql.NullTime{Time: event.Recurrence.EndDate.UTC(), Valid: true}
	}

	return freq, interval, until
}
