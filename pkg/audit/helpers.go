package audit

import (
	"strings"
)

// resourceTables maps an API collection segment to the table it acts on.
var resourceTables = map[string]string{
	"applications": "applications",
	"conflicts":    "conflicts",
	"jobs":         "detection_jobs",
	"similarity":   "similarity_models",
}

// pathSegments returns the path below /api/{version}/.
func pathSegments(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "api" {
		return parts[2:]
	}
	return parts
}

// extractResource returns the table and record id addressed by path.
// For /api/v1/conflicts/12/resolve it returns ("conflicts", "12").
func extractResource(path string) (table, recordID string) {
	parts := pathSegments(path)
	if len(parts) == 0 {
		return "", ""
	}
	table = resourceTables[parts[0]]
	if table == "" {
		table = parts[0]
	}
	if len(parts) >= 2 && parts[0] != "similarity" {
		recordID = parts[1]
	}
	return table, recordID
}

// extractActionVerb returns the operator action named by the request.
func extractActionVerb(method, path string) string {
	parts := pathSegments(path)
	if len(parts) > 0 {
		switch last := parts[len(parts)-1]; last {
		case "detect", "resolve", "retrain", "cancel":
			return last
		}
	}

	switch method {
	case "POST":
		return "create"
	case "PUT":
		return "update"
	case "PATCH":
		return "patch"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// readOnlyPosts are POST endpoints that only answer a question.
var readOnlyPosts = map[string]bool{
	"identity-check": true,
	"validate":       true,
}

// isAuditedRequest returns true for mutating requests outside the health
// and query endpoints.
func isAuditedRequest(method, path string) bool {
	if isHealthEndpoint(path) {
		return false
	}
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
	default:
		return false
	}
	parts := pathSegments(path)
	if len(parts) == 1 && readOnlyPosts[parts[0]] {
		return false
	}
	return true
}

// isHealthEndpoint returns true for health-check paths.
func isHealthEndpoint(path string) bool {
	switch path {
	case "/livez", "/readyz", "/healthz", "/metrics":
		return true
	}
	return false
}
