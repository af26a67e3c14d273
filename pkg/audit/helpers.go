package audit

import (
	"strings"
)

// describeRequest derives the audited action, resource type, resource id,
// and registry id from a mutating API request path. Paths follow the
// /api/v1 layout:
//
//	/api/v1/registries
//	/api/v1/registries/{registryId}
//	/api/v1/registries/{registryId}/items/{itemId}
//	/api/v1/registries/{registryId}/items/{itemId}/files
//	/api/v1/registries/{registryId}/files/{fileId}
//	/api/v1/registries/{registryId}/export
//	/api/v1/registries/{registryId}/push
//	/api/v1/import
//	/api/v1/jobs/push, /api/v1/jobs/import, /api/v1/jobs/{jobId}/cancel
func describeRequest(method, path string) (action, resourceType, resourceID, registryID string) {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return methodVerb(method), "", "", ""
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")

	switch parts[0] {
	case "import":
		return "import", "registry", "", ""
	case "jobs":
		if len(parts) >= 2 {
			switch parts[1] {
			case "push", "import":
				return "enqueue-" + parts[1], "job", "", ""
			}
			if len(parts) >= 3 && parts[2] == "cancel" {
				return "cancel", "job", parts[1], ""
			}
		}
		return methodVerb(method), "job", "", ""
	case "registries":
		if len(parts) == 1 {
			return methodVerb(method), "registry", "", ""
		}
		registryID = parts[1]
		if len(parts) == 2 {
			return methodVerb(method), "registry", registryID, registryID
		}
		switch parts[2] {
		case "export", "push":
			return parts[2], "registry", registryID, registryID
		case "items":
			if len(parts) >= 5 && parts[4] == "files" {
				return methodVerb(method), "file", parts[3], registryID
			}
			if len(parts) >= 4 {
				return methodVerb(method), "item", parts[3], registryID
			}
			return methodVerb(method), "item", "", registryID
		case "files":
			id := ""
			if len(parts) >= 4 {
				id = parts[3]
			}
			return methodVerb(method), "file", id, registryID
		}
		return methodVerb(method), "registry", registryID, registryID
	}
	return methodVerb(method), "", "", ""
}

// methodVerb maps an HTTP method to an action verb.
func methodVerb(method string) string {
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

// shouldAudit returns true if the request should be recorded. Only
// mutations under /api/v1 are audited; browsing is not.
func shouldAudit(method, path string) bool {
	if !strings.HasPrefix(path, "/api/v1/") {
		return false
	}
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == 403:
		return "denied"
	default:
		return "failure"
	}
}
