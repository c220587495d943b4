package tracking

import "errors"

var (
	// ErrRecordNotFound is returned when no location status record matches.
	ErrRecordNotFound = errors.New("tracking: record not found")

	// ErrRecordExists is returned when creating a duplicate (event, participant) record.
	ErrRecordExists = errors.New("tracking: record already exists")

	// ErrVersionConflict is returned when a record changed since it was read.
	ErrVersionConflict = errors.New("tracking: version conflict")

	// ErrInvalidReport is returned for a location payload that cannot be decoded.
	ErrInvalidReport = errors.New("tracking: invalid location report")

	// ErrAlertNotFound is returned when acknowledging an unknown alert.
	ErrAlertNotFound = errors.New("tracking: alert not found")
)
