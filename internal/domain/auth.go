package domain

import "fmt"

// ErrForbidden is returned when a control client lacks a permission.
var ErrForbidden = fmt.Errorf("forbidden: %w", ErrPermissionDenied)

// AuthRole is a control-API client role.
type AuthRole string

const (
	AuthRoleAdmin    AuthRole = "admin"
	AuthRoleOperator AuthRole = "operator"
	AuthRoleViewer   AuthRole = "viewer"
)

// AllAuthRoles lists every valid role for validation purposes.
var AllAuthRoles = []AuthRole{AuthRoleAdmin, AuthRoleOperator, AuthRoleViewer}

// Permission is one action a control client may be granted.
type Permission string

const (
	PermSessionView    Permission = "session:view"
	PermSessionConnect Permission = "session:connect"
	PermSessionSend    Permission = "session:send"
	// PermSessionAny lifts the rule that clients only touch sessions they own.
	PermSessionAny Permission = "session:any"
	PermDashboard  Permission = "dashboard:view"
)

// RolePermissions maps each role to its granted permissions.
var RolePermissions = map[AuthRole][]Permission{
	AuthRoleAdmin: {
		PermSessionView, PermSessionConnect, PermSessionSend, PermSessionAny, PermDashboard,
	},
	AuthRoleOperator: {
		PermSessionView, PermSessionConnect, PermSessionSend,
	},
	AuthRoleViewer: {
		PermSessionView, PermDashboard,
	},
}

// HasPermission reports whether any of roles grants perm.
func HasPermission(roles []AuthRole, perm Permission) bool {
	for _, role := range roles {
		for _, p := range RolePermissions[role] {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// IsValidAuthRole returns true if s names a known role.
func IsValidAuthRole(s string) bool {
	for _, r := range AllAuthRoles {
		if string(r) == s {
			return true
		}
	}
	return false
}

// StringsToAuthRoles converts role names, skipping unrecognized values.
func StringsToAuthRoles(ss []string) []AuthRole {
	roles := make([]AuthRole, 0, len(ss))
	for _, s := range ss {
		if IsValidAuthRole(s) {
			roles = append(roles, AuthRole(s))
		}
	}
	return roles
}
