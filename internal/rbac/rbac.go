// Package rbac gates administrative operations by organization role.
package rbac

import (
	"net/http"
	"strings"
)

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

type Permission string

const (
	PermWorkflowsRead    Permission = "workflows:read"
	PermWorkflowsCreate  Permission = "workflows:create"
	PermWorkflowsUpdate  Permission = "workflows:update"
	PermWorkflowsDelete  Permission = "workflows:delete"
	PermWorkflowsTrigger Permission = "workflows:trigger"
	PermCredentialsRead  Permission = "credentials:read"
	PermCredentialsWrite Permission = "credentials:write"
	PermJobsProcess      Permission = "jobs:process"
	PermAuditRead        Permission = "audit:read"
)

// permissions lists, for each permission, every role allowed to exercise it.
// The table is intentionally explicit rather than a rank threshold: several
// permissions do not follow the OWNER > ADMIN > MEMBER > VIEWER ordering
// (MEMBER can trigger workflows it cannot edit, VIEWER can read them).
var permissions = map[Permission][]Role{
	PermWorkflowsRead:    {RoleOwner, RoleAdmin, RoleMember, RoleViewer},
	PermWorkflowsCreate:  {RoleOwner, RoleAdmin},
	PermWorkflowsUpdate:  {RoleOwner, RoleAdmin},
	PermWorkflowsDelete:  {RoleOwner, RoleAdmin},
	PermWorkflowsTrigger: {RoleOwner, RoleAdmin, RoleMember},
	PermCredentialsRead:  {RoleOwner, RoleAdmin},
	PermCredentialsWrite: {RoleOwner, RoleAdmin},
	PermJobsProcess:      {RoleOwner, RoleAdmin},
	PermAuditRead:        {RoleOwner, RoleAdmin},
}

// Error carries the HTTP mapping for a denied check.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// ParseRole normalizes a role string from a session token. The auth provider
// is not consistent about casing, so matching is case-insensitive.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(s)); r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return r, true
	}
	return "", false
}

// Check returns nil when role may exercise perm, or a *Error describing the
// denial. Unknown permissions deny: a typo in a permission key must fail
// closed, not open.
func Check(role Role, perm Permission) *Error {
	allowed, ok := permissions[perm]
	if !ok {
		return &Error{
			Code:    "FORBIDDEN",
			Message: "Unknown permission",
			Status:  http.StatusForbidden,
		}
	}
	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return &Error{
		Code:    "FORBIDDEN",
		Message: "Insufficient permissions for " + string(perm),
		Status:  http.StatusForbidden,
	}
}
