// Package tracking implements the geofence attendance monitor.
//
// For every checked-in participant of an active event the monitor keeps one
// LocationStatus record and answers a single question: how long has this
// person been outside the event's geofence (or silent), and have they used up
// the organizer's budget?
//
// The package is split into four layers:
//
//   - Evaluate (machine.go) is a pure transition function. Given a record, the
//     event and a signal (a location fix or a clock tick) it returns the next
//     record plus the effects the caller must carry out: start or stop the
//     per-record ticker and mark the attendance absent.
//   - TimerManager (timers.go) owns one ticking goroutine per record whose
//     outside timer is running.
//   - Sweeper (sweep.go) periodically re-evaluates every active record of
//     every active event, re-arming tickers that were lost on restart.
//   - Monitor (monitor.go) is the facade used by the HTTP and MQTT layers.
//
// # Concurrency
//
// Ticks, sweeps and inbound fixes for the same record may race. The Monitor
// serializes them in-process with a keyed mutex, and every write is a
// version-checked update in the repository so a stale read can never
// overwrite a newer state. The absence transition is guarded by the presence
// of an unacknowledged exceeded_limit alert, so replaying ticks converges to
// exactly one alert and one attendance mutation.
//
// # Time accounting
//
// TotalTimeOutside only grows while a session runs and is folded into the
// total whenever the timer pauses or freezes. It is reset only when tracking
// is initialized for a different attendance session.
package tracking
