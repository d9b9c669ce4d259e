package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		roles []AuthRole
		perm  Permission
		want  bool
	}{
		{[]AuthRole{AuthRoleAdmin}, PermSessionAny, true},
		{[]AuthRole{AuthRoleOperator}, PermSessionSend, true},
		{[]AuthRole{AuthRoleOperator}, PermSessionAny, false},
		{[]AuthRole{AuthRoleOperator}, PermDashboard, false},
		{[]AuthRole{AuthRoleViewer}, PermDashboard, true},
		{[]AuthRole{AuthRoleViewer}, PermSessionConnect, false},
		{[]AuthRole{AuthRoleViewer, AuthRoleOperator}, PermSessionConnect, true},
		{nil, PermSessionView, false},
		{[]AuthRole{"ghost"}, PermSessionView, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPermission(tt.roles, tt.perm), "%v %s", tt.roles, tt.perm)
	}
}

func TestStringsToAuthRoles(t *testing.T) {
	got := StringsToAuthRoles([]string{"admin", "root", "viewer", ""})
	assert.Equal(t, []AuthRole{AuthRoleAdmin, AuthRoleViewer}, got)
	assert.True(t, IsValidAuthRole("operator"))
	assert.False(t, IsValidAuthRole("Operator"))
}

func TestErrForbiddenCode(t *testing.T) {
	assert.True(t, errors.Is(ErrForbidden, ErrPermissionDenied))
	assert.Equal(t, CodePermissionDenied, ErrorCodeOf(NewDomainError("op", ErrForbidden, "")))
}
