// Package audit records and lists the trail of actions that change a
// participant's monitoring outcome: automatic absences, alert
// acknowledgements, stops and event teardowns.
//
// Entries are append-only. Write failures are reported to the caller, which
// logs them; an audit failure never blocks the action being audited.
package audit
