package attendance

import "time"

// Status is the state of one attendance session.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusAbsent     Status = "absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRegistered, StatusCheckedIn, StatusCheckedOut, StatusAbsent:
		return true
	}
	return false
}

// Record is one participant's attendance session for an event.
type Record struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id"`
	ParticipantID string     `json:"participant_id"`
	Status        Status     `json:"status"`
	CheckInTime   *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime  *time.Time `json:"check_out_time,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Monitored reports whether the participant belongs on a live dashboard.
// Registered (not yet arrived) and checked-out participants are hidden.
func (r *Record) Monitored() bool {
	return r.Status == StatusCheckedIn || r.Status == StatusAbsent
}
