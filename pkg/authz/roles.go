package authz

import (
	"context"
	"strings"
)

// Default group names.
const (
	GroupAdmins   = "landreg-admins"
	GroupOfficers = "officers"
	GroupAuditors = "auditors"
)

// Policy maps a group to the "resource:verb" permissions it holds. A verb
// or resource of "*" matches anything.
type Policy map[string][]string

// DefaultPolicy lets officers run and resolve detection, auditors read the
// audit log and admins do everything.
func DefaultPolicy() Policy {
	return Policy{
		GroupAdmins: {"*:*"},
		GroupOfficers: {
			ResourceApplications + ":*",
			ResourceConflicts + ":*",
			ResourceIdentity + ":*",
			ResourceJobs + ":*",
			ResourceModel + ":" + VerbGet,
		},
		GroupAuditors: {
			ResourceAudit + ":" + VerbList,
			ResourceAudit + ":" + VerbGet,
			ResourceConflicts + ":" + VerbList,
			ResourceConflicts + ":" + VerbGet,
		},
	}
}

// RoleAuthorizer grants permissions by proxy-supplied group membership.
type RoleAuthorizer struct {
	policy Policy
}

// NewRoleAuthorizer creates a RoleAuthorizer. A nil policy uses DefaultPolicy.
func NewRoleAuthorizer(policy Policy) *RoleAuthorizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &RoleAuthorizer{policy: policy}
}

// Authorize returns true when any of the caller's groups holds the permission.
func (a *RoleAuthorizer) Authorize(_ context.Context, req AuthzRequest) (bool, error) {
	for _, g := range req.Groups {
		for _, perm := range a.policy[g] {
			if permits(perm, req.Resource, req.Verb) {
				return true, nil
			}
		}
	}
	return false, nil
}

func permits(perm, resource, verb string) bool {
	res, v, ok := strings.Cut(perm, ":")
	if !ok {
		return false
	}
	return (res == "*" || res == resource) && (v == "*" || v == verb)
}
