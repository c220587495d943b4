package tracking

import (
	"time"

	"github.com/nerrad567/geowatch-core/internal/geo"
)

// Status is the display label of a record. Timer math never reads it.
type Status string

const (
	StatusInside  Status = "inside"
	StatusOutside Status = "outside"
	// StatusWarning is kept for API compatibility; no transition produces it.
	StatusWarning Status = "warning"
	StatusAbsent  Status = "absent"
)

// TimerReason records why the outside timer is (or last was) running.
type TimerReason string

const (
	ReasonNone    TimerReason = ""
	ReasonOutside TimerReason = "outside"
	ReasonStale   TimerReason = "stale"
)

// AlertType identifies an entry in a record's alert history.
type AlertType string

const (
	AlertLeftGeofence  AlertType = "left_geofence"
	AlertReturned      AlertType = "returned"
	AlertWarning       AlertType = "warning"
	AlertExceededLimit AlertType = "exceeded_limit"
)

// Location is the last fix reported by a participant's device.
// The zero coordinate pair means no real fix has arrived yet.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the coordinate part of the fix.
func (l Location) Point() geo.Point {
	return geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

// OutsideTimer accumulates seconds spent outside the geofence or unreachable.
type OutsideTimer struct {
	IsActive            bool        `json:"is_active"`
	Reason              TimerReason `json:"reason,omitempty"`
	StartTime           *time.Time  `json:"start_time,omitempty"`
	CurrentSessionStart *time.Time  `json:"current_session_start,omitempty"`
	TotalTimeOutside    int64       `json:"total_time_outside"`
}

// Alert is one entry in a record's alert history.
type Alert struct {
	ID           string    `json:"id"`
	Type         AlertType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`

	// AbsenceRecorded is set on exceeded_limit once the attendance write
	// went through or was no longer needed.
	AbsenceRecorded bool `json:"absence_recorded,omitempty"`
}

// LocationStatus is the persisted monitoring state of one participant at one event.
type LocationStatus struct {
	ID                 string       `json:"id"`
	EventID            string       `json:"event_id"`
	ParticipantID      string       `json:"participant_id"`
	AttendanceID       string       `json:"attendance_id"`
	CurrentLocation    Location     `json:"current_location"`
	IsWithinGeofence   bool         `json:"is_within_geofence"`
	DistanceFromCenter int          `json:"distance_from_center"`
	OutsideTimer       OutsideTimer `json:"outside_timer"`
	Status             Status       `json:"status"`
	AlertsSent         []Alert      `json:"alerts_sent"`
	IsActive           bool         `json:"is_active"`
	LastLocationUpdate time.Time    `json:"last_location_update"`
	BatteryLevel       *float64     `json:"battery_level,omitempty"`
	Version            int64        `json:"version"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// HasFix reports whether a real location fix has been recorded.
func (r *LocationStatus) HasFix() bool {
	return !r.CurrentLocation.Point().IsZero()
}

// HasPendingExceeded reports whether an unacknowledged exceeded_limit alert exists.
func (r *LocationStatus) HasPendingExceeded() bool {
	for _, a := range r.AlertsSent {
		if a.Type == AlertExceededLimit && !a.Acknowledged {
			return true
		}
	}
	return false
}

// AbsencePending reports whether an unacknowledged exceeded_limit alert is
// still waiting for its attendance write.
func (r *LocationStatus) AbsencePending() bool {
	for _, a := range r.AlertsSent {
		if a.Type == AlertExceededLimit && !a.Acknowledged && !a.AbsenceRecorded {
			return true
		}
	}
	return false
}

// NeedsEvaluation reports whether a tick could change the record: it is
// active and either its timer runs or it has gone stale.
func (r *LocationStatus) NeedsEvaluation(now time.Time, staleGrace time.Duration) bool {
	if !r.IsActive {
		return false
	}
	return r.OutsideTimer.IsActive || now.Sub(r.LastLocationUpdate) > staleGrace
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r *LocationStatus) Clone() LocationStatus {
	c := *r
	c.OutsideTimer.StartTime = cloneTime(r.OutsideTimer.StartTime)
	c.OutsideTimer.CurrentSessionStart = cloneTime(r.OutsideTimer.CurrentSessionStart)
	if r.AlertsSent != nil {
		c.AlertsSent = make([]Alert, len(r.AlertsSent))
		copy(c.AlertsSent, r.AlertsSent)
	}
	if r.BatteryLevel != nil {
		b := *r.BatteryLevel
		c.BatteryLevel = &b
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// LocationReport is an inbound fix from a participant's device.
type LocationReport struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Accuracy     float64  `json:"accuracy"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`
}

// ParticipantStatus is one row of the organizer dashboard.
type ParticipantStatus struct {
	RecordID                  string       `json:"record_id"`
	ParticipantID             string       `json:"participant_id"`
	AttendanceID              string       `json:"attendance_id"`
	CurrentLocation           Location     `json:"current_location"`
	IsWithinGeofence          bool         `json:"is_within_geofence"`
	DistanceFromCenter        int          `json:"distance_from_center"`
	OutsideTimer              OutsideTimer `json:"outside_timer"`
	Status                    Status       `json:"status"`
	AlertsSent                []Alert      `json:"alerts_sent"`
	IsActive                  bool         `json:"is_active"`
	LastLocationUpdate        time.Time    `json:"last_location_update"`
	CurrentTimeOutsideSeconds int64        `json:"current_time_outside_seconds"`
}
