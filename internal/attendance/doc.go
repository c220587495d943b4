// Package attendance holds the attendance records the geofence monitor consumes.
//
// The check-in and check-out flows live in the surrounding application; the
// monitor only reads a record and, when a participant exhausts their time
// outside budget, performs the single checked_in -> absent transition via
// MarkAbsent. MarkAbsent is a conditional update so concurrent callers can
// race safely: exactly one of them observes a mutation.
package attendance
