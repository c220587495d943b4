package auth

import "errors"

// Role is the caller class carried in an access token.
type Role string

const (
	// RoleOrganizer runs events: dashboard, teardown, acknowledgements, audit.
	RoleOrganizer Role = "organizer"

	// RoleParticipant is a checked-in attendee's device. It may only report
	// and manage tracking for its own participant id (the token subject).
	RoleParticipant Role = "participant"

	// RoleService is a trusted backend, e.g. the check-in service that
	// starts tracking on behalf of participants.
	RoleService Role = "service"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleOrganizer, RoleParticipant, RoleService}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)
