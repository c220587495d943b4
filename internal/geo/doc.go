// Package geo provides the great-circle geometry used by the geofence monitor.
//
// All functions are pure and safe for concurrent use. Non-finite input never
// panics: distances come back as NaN and containment checks report false, so
// callers classify malformed fixes as "outside".
package geo
