package authz

import (
	"os"
	"strings"
)

// AuthzMode selects the authorization backend.
type AuthzMode string

const (
	// AuthzModeNone disables authorization checks.
	AuthzModeNone AuthzMode = "none"
	// AuthzModeGroups checks proxy-supplied groups against a Policy.
	AuthzModeGroups AuthzMode = "groups"
)

// ModeFromEnv reads LANDREG_AUTHZ_MODE, defaulting to none.
func ModeFromEnv() AuthzMode {
	switch AuthzMode(strings.ToLower(strings.TrimSpace(os.Getenv("LANDREG_AUTHZ_MODE")))) {
	case AuthzModeGroups:
		return AuthzModeGroups
	default:
		return AuthzModeNone
	}
}

// New returns the authorizer for mode.
func New(mode AuthzMode) Authorizer {
	if mode == AuthzModeGroups {
		return NewRoleAuthorizer(nil)
	}
	return &NoopAuthorizer{}
}
