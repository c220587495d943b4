// Package event is the read model of the events this service monitors.
//
// Event management (creation, invitations, registration forms) belongs to the
// surrounding application. This package only reads the fields the geofence
// monitor depends on: the geofence circle, the time-outside budget and the
// lifecycle status. Create and SetLifecycle exist for operator tooling and
// tests.
package event
