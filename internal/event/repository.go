package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the event persistence operations the monitor needs.
type Repository interface {
	Get(ctx context.Context, id string) (*Event, error)
	ListByLifecycle(ctx context.Context, lifecycle Lifecycle) ([]Event, error)
	Create(ctx context.Context, ev *Event) error
	SetLifecycle(ctx context.Context, id string, lifecycle Lifecycle) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, name, center_latitude, center_longitude, radius_meters,
		max_time_outside_minutes, lifecycle, created_at, updated_at
		FROM events`

// Get returns a single event by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanEvent(row)
}

// ListByLifecycle returns events in the given lifecycle state ordered by name.
func (r *SQLiteRepository) ListByLifecycle(ctx context.Context, lifecycle Lifecycle) ([]Event, error) {
	if !lifecycle.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLifecycle, lifecycle)
	}

	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE lifecycle = ? ORDER BY name, id`, string(lifecycle))
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Create validates and inserts a new event.
func (r *SQLiteRepository) Create(ctx context.Context, ev *Event) error {
	if ev.Lifecycle == "" {
		ev.Lifecycle = LifecycleUpcoming
	}
	if err := ev.Validate(); err != nil {
		return err
	}

	const query = `INSERT INTO events (id, name, center_latitude, center_longitude,
		radius_meters, max_time_outside_minutes, lifecycle)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.Name, ev.Center.Latitude, ev.Center.Longitude,
		ev.RadiusMeters, ev.MaxTimeOutsideMinutes, string(ev.Lifecycle))
	if err != nil {
		return fmt.Errorf("inserting event %s: %w", ev.ID, err)
	}
	return nil
}

// SetLifecycle moves an event to a new lifecycle state.
func (r *SQLiteRepository) SetLifecycle(ctx context.Context, id string, lifecycle Lifecycle) error {
	if !lifecycle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLifecycle, lifecycle)
	}

	const query = `UPDATE events SET lifecycle = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, string(lifecycle), id)
	if err != nil {
		return fmt.Errorf("updating event %s lifecycle: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func scanEvent(row *sql.Row) (*Event, error) {
	var ev Event
	var lifecycle, createdAt, updatedAt string
	err := row.Scan(&ev.ID, &ev.Name, &ev.Center.Latitude, &ev.Center.Longitude,
		&ev.RadiusMeters, &ev.MaxTimeOutsideMinutes, &lifecycle, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	ev.Lifecycle = Lifecycle(lifecycle)
	ev.CreatedAt = parseTime(createdAt)
	ev.UpdatedAt = parseTime(updatedAt)
	return &ev, nil
}

func scanEventRow(rows *sql.Rows) (*Event, error) {
	var ev Event
	var lifecycle, createdAt, updatedAt string
	if err := rows.Scan(&ev.ID, &ev.Name, &ev.Center.Latitude, &ev.Center.Longitude,
		&ev.RadiusMeters, &ev.MaxTimeOutsideMinutes, &lifecycle, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning event row: %w", err)
	}
	ev.Lifecycle = Lifecycle(lifecycle)
	ev.CreatedAt = parseTime(createdAt)
	ev.UpdatedAt = parseTime(updatedAt)
	return &ev, nil
}

// parseTime parses a SQLite timestamp string.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02T15:04:05Z", s) //nolint:errcheck // fallback format
	}
	return t
}
