// Package api implements the HTTP REST API and WebSocket feed of the
// geofence monitor.
//
// Two kinds of client use it:
//   - Participant devices (and the check-in service) start and stop
//     tracking and post location fixes. A participant token may only write
//     its own participant id.
//   - Organizer dashboards read event status, acknowledge alerts, tear down
//     tracking when an event ends, read the audit trail and subscribe to
//     the tracking.alert and tracking.status WebSocket channels.
//
// Every route under /api/v1 except /health and /ws requires a bearer JWT.
// WebSocket connections authenticate with a single-use ticket from
// POST /api/v1/auth/ws-ticket so the token never appears in a URL.
//
// Location fixes also arrive over MQTT; that path is wired in cmd/geowatch
// and shares the monitor with this package.
package api
