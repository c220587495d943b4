package auth

// Permission represents a named capability.
type Permission string

const (
	PermTrackingWriteOwn Permission = "tracking:write:own"
	PermTrackingWriteAny Permission = "tracking:write:any"
	PermEventMonitor     Permission = "event:monitor"
	PermEventTeardown    Permission = "event:teardown"
	PermAlertAcknowledge Permission = "alert:acknowledge"
	PermAuditRead        Permission = "audit:read"
)

// rolePermissions is the whole authorisation model; there is no database
// lookup.
var rolePermissions = map[Role][]Permission{
	RoleParticipant: {
		PermTrackingWriteOwn,
	},
	RoleService: {
		PermTrackingWriteOwn,
		PermTrackingWriteAny,
		PermEventTeardown,
	},
	RoleOrganizer: {
		PermTrackingWriteAny,
		PermEventMonitor,
		PermEventTeardown,
		PermAlertAcknowledge,
		PermAuditRead,
	},
}

// HasPermission returns true if role has perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role, or
// nil for an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// CanWriteParticipant reports whether the token holder may initialize,
// report for or stop tracking of participantID.
func CanWriteParticipant(claims *CustomClaims, participantID string) bool {
	if claims == nil {
		return false
	}
	if HasPermission(claims.Role, PermTrackingWriteAny) {
		return true
	}
	return HasPermission(claims.Role, PermTrackingWriteOwn) && claims.Subject == participantID
}
