package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/uifoundry/registry-studio/pkg/authz"
)

// importRequest is the body for POST /import.
type importRequest struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch,omitempty"`
	Token  string `json:"token,omitempty"`
}

// importResponse is the API shape of an import result.
type importResponse struct {
	RegistryID string `json:"registryId"`
	Slug       string `json:"slug"`
	CommitSHA  string `json:"commitSha"`
	ItemCount  int    `json:"itemCount"`
	FileCount  int    `json:"fileCount"`
}

// ImportHandler handles POST /import: it imports a GitHub-hosted registry
// for the authenticated user.
func ImportHandler(imp *Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authz.IdentityFromContext(r.Context())
		if !ok || id.User == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		result, err := imp.ImportFromGithub(r.Context(), id.User, ImportOptions{
			Owner:  req.Owner,
			Repo:   req.Repo,
			Branch: req.Branch,
			Token:  req.Token,
		})
		if err != nil {
			var manifestErr *ManifestError
			if errors.As(err, &manifestErr) {
				writeError(w, http.StatusBadRequest, manifestErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("import failed: %v", err))
			return
		}

		writeJSON(w, http.StatusCreated, importResponse{
			RegistryID: result.RegistryID,
			Slug:       result.Slug,
			CommitSHA:  result.CommitSHA,
			ItemCount:  result.ItemCount,
			FileCount:  result.FileCount,
		})
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
