// Package authz gates operator actions on the registry API. Identity comes
// from headers set by the fronting proxy; no authentication happens here.
package authz

import "context"

// Resource names used in permission checks.
const (
	ResourceApplications = "applications"
	ResourceConflicts    = "conflicts"
	ResourceIdentity     = "identity"
	ResourceModel        = "similarity-model"
	ResourceJobs         = "jobs"
	ResourceAudit        = "audit"
)

// Verb names used in permission checks.
const (
	VerbGet     = "get"
	VerbList    = "list"
	VerbDetect  = "detect"
	VerbResolve = "resolve"
	VerbRetrain = "retrain"
	VerbCancel  = "cancel"
	VerbCheck   = "check"
)

// AuthzRequest represents an authorization check.
type AuthzRequest struct {
	User     string
	Groups   []string
	Resource string
	Verb     string
}

// Authorizer checks whether a user is authorized to perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthzRequest) (bool, error)
}
