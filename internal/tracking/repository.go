package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for location status records.
//
// Update is a compare-and-swap on Version: it fails with ErrVersionConflict
// when the stored record changed after it was read.
type Repository interface {
	Get(ctx context.Context, id string) (*LocationStatus, error)
	GetByParticipant(ctx context.Context, eventID, participantID string) (*LocationStatus, error)
	Create(ctx context.Context, rec *LocationStatus) error
	Update(ctx context.Context, rec *LocationStatus) error
	ListByEvent(ctx context.Context, eventID string) ([]LocationStatus, error)
	ListActiveByEvent(ctx context.Context, eventID string) ([]LocationStatus, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed location status repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, event_id, participant_id, attendance_id,
		latitude, longitude, accuracy, location_timestamp,
		is_within_geofence, distance_from_center,
		timer_active, timer_reason, timer_start_time, timer_session_start, total_time_outside,
		status, alerts, is_active, last_location_update, battery_level, version,
		created_at, updated_at
		FROM location_status`

// Get returns a record by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*LocationStatus, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanRecord(row)
}

// GetByParticipant returns the record for an (event, participant) pair.
func (r *SQLiteRepository) GetByParticipant(ctx context.Context, eventID, participantID string) (*LocationStatus, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE event_id = ? AND participant_id = ?`, eventID, participantID)
	return scanRecord(row)
}

// ListByEvent returns every record of an event ordered by participant.
func (r *SQLiteRepository) ListByEvent(ctx context.Context, eventID string) ([]LocationStatus, error) {
	return r.query(ctx, selectColumns+` WHERE event_id = ? ORDER BY participant_id`, eventID)
}

// ListActiveByEvent returns the monitored records of an event.
func (r *SQLiteRepository) ListActiveByEvent(ctx context.Context, eventID string) ([]LocationStatus, error) {
	return r.query(ctx, selectColumns+` WHERE event_id = ? AND is_active = 1 ORDER BY participant_id`, eventID)
}

// Create inserts a new record. An empty ID is filled with a UUID and the
// version starts at 1.
func (r *SQLiteRepository) Create(ctx context.Context, rec *LocationStatus) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Version = 1

	alerts, err := marshalAlerts(rec.AlertsSent)
	if err != nil {
		return err
	}

	const query = `INSERT INTO location_status (id, event_id, participant_id, attendance_id,
		latitude, longitude, accuracy, location_timestamp,
		is_within_geofence, distance_from_center,
		timer_active, timer_reason, timer_start_time, timer_session_start, total_time_outside,
		status, alerts, is_active, last_location_update, battery_level, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.EventID, rec.ParticipantID, rec.AttendanceID,
		rec.CurrentLocation.Latitude, rec.CurrentLocation.Longitude, rec.CurrentLocation.Accuracy,
		nullTime(&rec.CurrentLocation.Timestamp),
		rec.IsWithinGeofence, rec.DistanceFromCenter,
		rec.OutsideTimer.IsActive, string(rec.OutsideTimer.Reason),
		nullTime(rec.OutsideTimer.StartTime), nullTime(rec.OutsideTimer.CurrentSessionStart),
		rec.OutsideTimer.TotalTimeOutside,
		string(rec.Status), alerts, rec.IsActive, formatTime(rec.LastLocationUpdate),
		nullFloat(rec.BatteryLevel), rec.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRecordExists
		}
		return fmt.Errorf("inserting location status %s: %w", rec.ID, err)
	}
	return nil
}

// Update writes rec if its Version still matches the stored one and bumps
// the version on success.
func (r *SQLiteRepository) Update(ctx context.Context, rec *LocationStatus) error {
	alerts, err := marshalAlerts(rec.AlertsSent)
	if err != nil {
		return err
	}

	const query = `UPDATE location_status SET
			attendance_id = ?,
			latitude = ?, longitude = ?, accuracy = ?, location_timestamp = ?,
			is_within_geofence = ?, distance_from_center = ?,
			timer_active = ?, timer_reason = ?, timer_start_time = ?, timer_session_start = ?,
			total_time_outside = ?,
			status = ?, alerts = ?, is_active = ?, last_location_update = ?, battery_level = ?,
			version = version + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND version = ?`
	result, err := r.db.ExecContext(ctx, query,
		rec.AttendanceID,
		rec.CurrentLocation.Latitude, rec.CurrentLocation.Longitude, rec.CurrentLocation.Accuracy,
		nullTime(&rec.CurrentLocation.Timestamp),
		rec.IsWithinGeofence, rec.DistanceFromCenter,
		rec.OutsideTimer.IsActive, string(rec.OutsideTimer.Reason),
		nullTime(rec.OutsideTimer.StartTime), nullTime(rec.OutsideTimer.CurrentSessionStart),
		rec.OutsideTimer.TotalTimeOutside,
		string(rec.Status), alerts, rec.IsActive, formatTime(rec.LastLocationUpdate),
		nullFloat(rec.BatteryLevel),
		rec.ID, rec.Version)
	if err != nil {
		return fmt.Errorf("updating location status %s: %w", rec.ID, err)
	}

	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM location_status WHERE id = ?`, rec.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("checking location status %s: %w", rec.ID, err)
		}
		return ErrVersionConflict
	}

	rec.Version++
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]LocationStatus, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying location status: %w", err)
	}
	defer rows.Close()

	var records []LocationStatus
	for rows.Next() {
		rec, err := scanRecordFrom(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location status: %w", err)
	}
	return records, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*LocationStatus, error) {
	rec, err := scanRecordFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

func scanRecordFrom(s scanner) (*LocationStatus, error) {
	var (
		rec                                  LocationStatus
		locationTS, timerStart, sessionStart sql.NullString
		reason, status, alerts, lastUpdate   string
		createdAt, updatedAt                 string
		battery                              sql.NullFloat64
	)
	err := s.Scan(&rec.ID, &rec.EventID, &rec.ParticipantID, &rec.AttendanceID,
		&rec.CurrentLocation.Latitude, &rec.CurrentLocation.Longitude, &rec.CurrentLocation.Accuracy, &locationTS,
		&rec.IsWithinGeofence, &rec.DistanceFromCenter,
		&rec.OutsideTimer.IsActive, &reason, &timerStart, &sessionStart, &rec.OutsideTimer.TotalTimeOutside,
		&status, &alerts, &rec.IsActive, &lastUpdate, &battery, &rec.Version,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning location status: %w", err)
	}

	if t := parseNullTime(locationTS); t != nil {
		rec.CurrentLocation.Timestamp = *t
	}
	rec.OutsideTimer.Reason = TimerReason(reason)
	rec.OutsideTimer.StartTime = parseNullTime(timerStart)
	rec.OutsideTimer.CurrentSessionStart = parseNullTime(sessionStart)
	rec.Status = Status(status)
	rec.LastLocationUpdate = parseTime(lastUpdate)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if battery.Valid {
		b := battery.Float64
		rec.BatteryLevel = &b
	}

	rec.AlertsSent = []Alert{}
	if alerts != "" {
		if err := json.Unmarshal([]byte(alerts), &rec.AlertsSent); err != nil {
			return nil, fmt.Errorf("decoding alerts of %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func marshalAlerts(alerts []Alert) (string, error) {
	if alerts == nil {
		alerts = []Alert{}
	}
	b, err := json.Marshal(alerts)
	if err != nil {
		return "", fmt.Errorf("encoding alerts: %w", err)
	}
	return string(b), nil
}

// Timestamps keep sub-second precision so session arithmetic survives a
// round trip through the store.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// parseTime parses a stored timestamp (RFC 3339 with optional fraction).
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02T15:04:05Z", s) //nolint:errcheck // fallback format
	}
	return t
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
