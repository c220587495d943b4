package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the attendance operations used by the monitor.
type Repository interface {
	Find(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	MarkAbsent(ctx context.Context, id string, at time.Time, note string) (bool, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed attendance repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Find returns a single attendance record by ID.
func (r *SQLiteRepository) Find(ctx context.Context, id string) (*Record, error) {
	const query = `SELECT id, event_id, participant_id, status, check_in_time,
		check_out_time, notes, created_at, updated_at
		FROM attendance WHERE id = ?`

	var rec Record
	var status, createdAt, updatedAt string
	var checkIn, checkOut sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.EventID, &rec.ParticipantID,
		&status, &checkIn, &checkOut, &rec.Notes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttendanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying attendance %s: %w", id, err)
	}

	rec.Status = Status(status)
	rec.CheckInTime = parseNullTime(checkIn)
	rec.CheckOutTime = parseNullTime(checkOut)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

// Save inserts or fully replaces an attendance record.
func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, rec.Status)
	}

	const query = `INSERT INTO attendance (id, event_id, participant_id, status,
		check_in_time, check_out_time, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_id = excluded.event_id,
			participant_id = excluded.participant_id,
			status = excluded.status,
			check_in_time = excluded.check_in_time,
			check_out_time = excluded.check_out_time,
			notes = excluded.notes,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.EventID, rec.ParticipantID, string(rec.Status),
		nullTime(rec.CheckInTime), nullTime(rec.CheckOutTime), rec.Notes)
	if err != nil {
		return fmt.Errorf("saving attendance %s: %w", rec.ID, err)
	}
	return nil
}

// MarkAbsent moves a checked-in attendance to absent, stamping the check-out
// time and appending note. Records in any other state are left untouched and
// the call reports false. Only one of several concurrent callers can observe
// true.
func (r *SQLiteRepository) MarkAbsent(ctx context.Context, id string, at time.Time, note string) (bool, error) {
	const query = `UPDATE attendance SET
			status = 'absent',
			check_out_time = ?,
			notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND status = 'checked_in'`
	result, err := r.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), note, note, id)
	if err != nil {
		return false, fmt.Errorf("marking attendance %s absent: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n > 0 {
		return true, nil
	}

	// Distinguish "already absent / checked out" from a missing record.
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM attendance WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrAttendanceNotFound
	}
	if err != nil {
		return false, fmt.Errorf("checking attendance %s: %w", id, err)
	}
	return false, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// parseTime parses a SQLite timestamp string.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02T15:04:05Z", s) //nolint:errcheck // fallback format
	}
	return t
}
