package event

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nerrad567/geowatch-core/internal/geo"
)

// Lifecycle is the status of an event as set by the organizer.
type Lifecycle string

const (
	LifecycleUpcoming  Lifecycle = "upcoming"
	LifecycleActive    Lifecycle = "active"
	LifecycleCompleted Lifecycle = "completed"
)

// Valid reports whether l is a known lifecycle value.
func (l Lifecycle) Valid() bool {
	switch l {
	case LifecycleUpcoming, LifecycleActive, LifecycleCompleted:
		return true
	}
	return false
}

// DefaultMaxTimeOutsideMinutes applies when an event leaves the budget unset.
const DefaultMaxTimeOutsideMinutes = 15

// Event holds the monitoring-relevant configuration of one event.
type Event struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Center                geo.Point `json:"geofence_center"`
	RadiusMeters          float64   `json:"geofence_radius"`
	MaxTimeOutsideMinutes int       `json:"max_time_outside_minutes"`
	Lifecycle             Lifecycle `json:"lifecycle"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// MaxTimeOutside returns the time budget, falling back to fallbackMinutes
// (or DefaultMaxTimeOutsideMinutes when that is also unset) for zero or
// negative values.
func (e *Event) MaxTimeOutside(fallbackMinutes int) time.Duration {
	minutes := e.MaxTimeOutsideMinutes
	if minutes <= 0 {
		minutes = fallbackMinutes
	}
	if minutes <= 0 {
		minutes = DefaultMaxTimeOutsideMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// IsCompleted reports whether monitoring for the event has ended.
func (e *Event) IsCompleted() bool {
	return e.Lifecycle == LifecycleCompleted
}

// Validate checks the geofence definition and lifecycle.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	if !e.Center.IsFinite() {
		return fmt.Errorf("%w: geofence center must be finite", ErrInvalidEvent)
	}
	if math.Abs(e.Center.Latitude) > 90 || math.Abs(e.Center.Longitude) > 180 {
		return fmt.Errorf("%w: geofence center out of range", ErrInvalidEvent)
	}
	if math.IsNaN(e.RadiusMeters) || e.RadiusMeters <= 0 {
		return fmt.Errorf("%w: geofence radius must be positive", ErrInvalidEvent)
	}
	if e.MaxTimeOutsideMinutes < 0 {
		return fmt.Errorf("%w: max time outside cannot be negative", ErrInvalidEvent)
	}
	if !e.Lifecycle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLifecycle, e.Lifecycle)
	}
	return nil
}
