package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleParticipant, PermTrackingWriteOwn, true},
		{RoleParticipant, PermTrackingWriteAny, false},
		{RoleParticipant, PermEventMonitor, false},
		{RoleParticipant, PermAuditRead, false},
		{RoleService, PermTrackingWriteAny, true},
		{RoleService, PermEventTeardown, true},
		{RoleService, PermAlertAcknowledge, false},
		{RoleOrganizer, PermEventMonitor, true},
		{RoleOrganizer, PermAlertAcknowledge, true},
		{RoleOrganizer, PermAuditRead, true},
		{Role("unknown"), PermTrackingWriteOwn, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestPermissionsForRoleReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleOrganizer)
	if len(perms) == 0 {
		t.Fatal("organizer has no permissions")
	}
	perms[0] = "tampered"
	if PermissionsForRole(RoleOrganizer)[0] == "tampered" {
		t.Error("PermissionsForRole() exposed the shared slice")
	}
	if PermissionsForRole(Role("unknown")) != nil {
		t.Error("unknown role should have nil permissions")
	}
}

func TestCanWriteParticipant(t *testing.T) {
	claims := func(sub string, role Role) *CustomClaims {
		c := &CustomClaims{Role: role}
		c.Subject = sub
		return c
	}
	tests := []struct {
		name   string
		claims *CustomClaims
		target string
		want   bool
	}{
		{"participant self", claims("p-1", RoleParticipant), "p-1", true},
		{"participant other", claims("p-1", RoleParticipant), "p-2", false},
		{"service any", claims("checkin", RoleService), "p-2", true},
		{"organizer any", claims("org-1", RoleOrganizer), "p-2", true},
		{"nil claims", nil, "p-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanWriteParticipant(tt.claims, tt.target); got != tt.want {
				t.Errorf("CanWriteParticipant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%s) = false", r)
		}
	}
	if IsValidRole("panel") {
		t.Error("IsValidRole(panel) = true")
	}
}
