package authz

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// RequirePermission returns middleware that enforces a resource/verb
// permission for the identity placed in the context by IdentityMiddleware.
func RequirePermission(authorizer Authorizer, resource, verb string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := IdentityFromContext(r.Context())

			allowed, err := authorizer.Authorize(r.Context(), AuthzRequest{
				User:     id.User,
				Groups:   id.Groups,
				Resource: resource,
				Verb:     verb,
			})
			if err != nil {
				writeDenial(w, http.StatusInternalServerError, "internal_error", "authorization check failed")
				return
			}
			if !allowed {
				writeDenial(w, http.StatusForbidden, "forbidden",
					fmt.Sprintf("insufficient permissions for %s/%s", resource, verb))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeDenial(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
