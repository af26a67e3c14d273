package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/authz"
	"github.com/uifoundry/registry-studio/pkg/github"
	"github.com/uifoundry/registry-studio/pkg/registry"
)

// exportRequest is the body for POST /registries/{registryId}/export.
type exportRequest struct {
	RepoName    string `json:"repoName,omitempty"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private,omitempty"`
	Org         string `json:"org,omitempty"`
}

// exportResponse is the API shape of a GithubExport record.
type exportResponse struct {
	RegistryID    string `json:"registryId"`
	RepoURL       string `json:"repoUrl"`
	PagesURL      string `json:"pagesUrl,omitempty"`
	RepoOwner     string `json:"repoOwner"`
	RepoName      string `json:"repoName"`
	LastCommitSHA string `json:"lastCommitSha"`
	LastSyncedAt  string `json:"lastSyncedAt"`
}

func exportToResponse(e *registry.GithubExport) exportResponse {
	return exportResponse{
		RegistryID:    e.RegistryID,
		RepoURL:       e.RepoURL,
		PagesURL:      e.PagesURL,
		RepoOwner:     e.RepoOwner,
		RepoName:      e.RepoName,
		LastCommitSHA: e.LastCommitSHA,
		LastSyncedAt:  e.LastSyncedAt.Format(time.RFC3339),
	}
}

// ExportHandler handles POST /registries/{registryId}/export.
func ExportHandler(svc *Service, store *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registryID := chi.URLParam(r, "registryId")
		if !requireOwner(w, r, store, registryID) {
			return
		}

		var req exportRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
		}

		export, err := svc.ExportToGithub(r.Context(), registryID, ExportOptions{
			RepoName:    req.RepoName,
			Description: req.Description,
			Private:     req.Private,
			Org:         req.Org,
		})
		if err != nil {
			writeSyncError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, exportToResponse(export))
	}
}

// pushResponse is the API shape of a push outcome.
type pushResponse struct {
	Status    string   `json:"status"`
	CommitSHA string   `json:"commitSha,omitempty"`
	Added     []string `json:"added,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
}

// PushHandler handles POST /registries/{registryId}/push.
// Query param force=true overrides conflict detection.
func PushHandler(svc *Service, store *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registryID := chi.URLParam(r, "registryId")
		if !requireOwner(w, r, store, registryID) {
			return
		}

		force := r.URL.Query().Get("force") == "true"

		result, err := svc.Push(r.Context(), registryID, force)
		if err != nil {
			writeSyncError(w, err)
			return
		}

		resp := pushResponse{
			CommitSHA: result.CommitSHA,
			Added:     result.Added,
			Modified:  result.Modified,
			Deleted:   result.Deleted,
		}
		if result.NoChanges {
			resp.Status = "no_changes"
		} else {
			resp.Status = "pushed"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// GetExportHandler handles GET /registries/{registryId}/export.
func GetExportHandler(store *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registryID := chi.URLParam(r, "registryId")
		if !requireOwner(w, r, store, registryID) {
			return
		}

		export, err := store.GetGithubExport(registryID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get export: %v", err))
			return
		}
		if export == nil {
			writeError(w, http.StatusNotFound, "registry has no github export")
			return
		}
		writeJSON(w, http.StatusOK, exportToResponse(export))
	}
}

// requireOwner loads the registry and verifies the request identity owns
// it, writing the appropriate error response otherwise.
func requireOwner(w http.ResponseWriter, r *http.Request, store *registry.Store, registryID string) bool {
	id, ok := authz.IdentityFromContext(r.Context())
	if !ok || id.User == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return false
	}

	reg, err := store.GetRegistry(registryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get registry: %v", err))
		return false
	}
	if reg == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("registry %q not found", registryID))
		return false
	}
	if reg.OwnerID != id.User {
		writeError(w, http.StatusForbidden, "not the registry owner")
		return false
	}
	return true
}

// writeSyncError maps sync engine errors to HTTP responses. Conflicts
// carry both commit SHAs so the caller can decide between force-push and
// manual reconciliation; upstream GitHub failures surface as 502.
func writeSyncError(w http.ResponseWriter, err error) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           "push conflict: remote repository has moved",
			"localCommitSha":  conflict.LocalCommitSHA,
			"remoteCommitSha": conflict.RemoteCommitSHA,
			"lastSyncedAt":    conflict.LastSyncedAt.Format(time.RFC3339),
		})
		return
	}

	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":          fmt.Sprintf("github request failed: %s", apiErr.Message),
			"upstreamStatus": apiErr.StatusCode,
			"kind":           string(apiErr.Kind),
		})
		return
	}

	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "registry not found")
	case errors.Is(err, ErrNotExported):
		writeError(w, http.StatusNotFound, "registry has no github export")
	case errors.Is(err, ErrAlreadyExported):
		writeError(w, http.StatusConflict, "registry is already exported to github")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
