package attendance

import "errors"

var (
	// ErrAttendanceNotFound is returned when an attendance ID does not exist.
	ErrAttendanceNotFound = errors.New("attendance: not found")

	// ErrInvalidStatus is returned for an unknown attendance status.
	ErrInvalidStatus = errors.New("attendance: invalid status")
)
