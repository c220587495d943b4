package audit

import "time"

// Actions recorded by the monitor.
const (
	ActionMarkAbsent   = "mark_absent"
	ActionAlertAck     = "acknowledge_alert"
	ActionTrackingStop = "stop_tracking"
	ActionTeardown     = "teardown"

	// ActionTrackingStart is written by the API, with the caller as user.
	ActionTrackingStart = "start_tracking"
)

// Entity types.
const (
	EntityLocationStatus = "location_status"
	EntityEvent          = "event"
)

// Sources.
const (
	SourceMonitor = "monitor"
	SourceAPI     = "api"
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: one of the Action constants
	EntityType string // optional: location_status or event
	EntityID   string // optional: a specific record or event ID
	Since      time.Time
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
