package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/authz"
	"github.com/uifoundry/registry-studio/pkg/registry"
)

// enqueuePushRequest is the body for POST /jobs/push.
type enqueuePushRequest struct {
	RegistryID string `json:"registryId"`
	Force      bool   `json:"force,omitempty"`
}

// enqueueImportRequest is the body for POST /jobs/import.
type enqueueImportRequest struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch,omitempty"`
}

// EnqueuePushHandler handles POST /jobs/push: queue an asynchronous push
// for a registry the caller owns. Repeated requests while a push is queued
// or running return the existing job.
func EnqueuePushHandler(store *JobStore, regStore *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		var req enqueuePushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.RegistryID == "" {
			writeError(w, http.StatusBadRequest, "registryId is required")
			return
		}

		reg, err := regStore.GetRegistry(req.RegistryID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get registry: %v", err))
			return
		}
		if reg == nil {
			writeError(w, http.StatusNotFound, "registry not found")
			return
		}
		if reg.OwnerID != id.User {
			writeError(w, http.StatusForbidden, "not the registry owner")
			return
		}

		job, err := store.Enqueue(&SyncJob{
			Kind:           JobKindPush,
			RegistryID:     req.RegistryID,
			Force:          req.Force,
			RequestedBy:    id.User,
			IdempotencyKey: "push:" + req.RegistryID,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue job: %v", err))
			return
		}
		writeJSON(w, http.StatusAccepted, jobToResponse(job))
	}
}

// EnqueueImportHandler handles POST /jobs/import: queue an asynchronous
// import of a GitHub-hosted registry for the caller.
func EnqueueImportHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		var req enqueueImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.Owner == "" || req.Repo == "" {
			writeError(w, http.StatusBadRequest, "owner and repo are required")
			return
		}

		job, err := store.Enqueue(&SyncJob{
			Kind:        JobKindImport,
			RepoOwner:   req.Owner,
			RepoName:    req.Repo,
			Branch:      req.Branch,
			RequestedBy: id.User,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue job: %v", err))
			return
		}
		writeJSON(w, http.StatusAccepted, jobToResponse(job))
	}
}

// GetJobHandler handles GET /jobs/{jobId}. Jobs are visible only to their
// requester.
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		job, err := store.Get(chi.URLParam(r, "jobId"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}
		if job == nil || job.RequestedBy != id.User {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, jobToResponse(job))
	}
}

// ListJobsHandler handles GET /jobs. Query params: kind, registryId,
// state, pageSize, pageToken. Results are scoped to the caller's jobs.
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		filter := JobListFilter{
			Kind:        r.URL.Query().Get("kind"),
			RegistryID:  r.URL.Query().Get("registryId"),
			State:       r.URL.Query().Get("state"),
			RequestedBy: id.User,
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := store.List(filter, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
			return
		}

		jobs := make([]jobResponse, len(records))
		for i := range records {
			jobs[i] = jobToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          jobs,
			"nextPageToken": nextToken,
			"totalSize":     total,
		})
	}
}

// CancelJobHandler handles POST /jobs/{jobId}/cancel.
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		jobID := chi.URLParam(r, "jobId")
		job, err := store.Get(jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
			return
		}
		if job == nil || job.RequestedBy != id.User {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}

		if err := store.Cancel(jobID); err != nil {
			writeError(w, http.StatusConflict, fmt.Sprintf("failed to cancel job: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "canceled",
			"jobId":  jobID,
		})
	}
}

// jobResponse is the API shape of a sync job.
type jobResponse struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	RegistryID       string `json:"registryId,omitempty"`
	Force            bool   `json:"force,omitempty"`
	RepoOwner        string `json:"repoOwner,omitempty"`
	RepoName         string `json:"repoName,omitempty"`
	Branch           string `json:"branch,omitempty"`
	RequestedBy      string `json:"requestedBy"`
	RequestedAt      string `json:"requestedAt"`
	State            string `json:"state"`
	Message          string `json:"message,omitempty"`
	StartedAt        string `json:"startedAt,omitempty"`
	FinishedAt       string `json:"finishedAt,omitempty"`
	AttemptCount     int    `json:"attemptCount"`
	LastError        string `json:"lastError,omitempty"`
	CommitSHA        string `json:"commitSha,omitempty"`
	FilesChanged     int    `json:"filesChanged,omitempty"`
	ResultRegistryID string `json:"resultRegistryId,omitempty"`
	DurationMs       int64  `json:"durationMs,omitempty"`
}

func jobToResponse(job *SyncJob) jobResponse {
	resp := jobResponse{
		ID:               job.ID,
		Kind:             string(job.Kind),
		RegistryID:       job.RegistryID,
		Force:            job.Force,
		RepoOwner:        job.RepoOwner,
		RepoName:         job.RepoName,
		Branch:           job.Branch,
		RequestedBy:      job.RequestedBy,
		RequestedAt:      job.RequestedAt.Format(time.RFC3339),
		State:            string(job.State),
		Message:          job.Message,
		AttemptCount:     job.AttemptCount,
		LastError:        job.LastError,
		CommitSHA:        job.CommitSHA,
		FilesChanged:     job.FilesChanged,
		ResultRegistryID: job.ResultRegistryID,
		DurationMs:       job.DurationMs,
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authz.Identity, bool) {
	id, ok := authz.IdentityFromContext(r.Context())
	if !ok || id.User == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return authz.Identity{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
