package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/authz"
)

// ListEventsHandler handles GET /audit/events. Callers see only their own
// activity; the actor filter is always forced to the request identity.
// Query params: action, resourceType, registryId, outcome, pageSize, pageToken
func ListEventsHandler(store *AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authz.IdentityFromContext(r.Context())
		if !ok || id.User == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		filter := AuditListFilter{
			Actor:        id.User,
			Action:       r.URL.Query().Get("action"),
			ResourceType: r.URL.Query().Get("resourceType"),
			RegistryID:   r.URL.Query().Get("registryId"),
			Outcome:      r.URL.Query().Get("outcome"),
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		events, nextToken, err := store.List(filter, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		responses := make([]auditEventResponse, len(events))
		for i := range events {
			responses[i] = eventToResponse(&events[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":        responses,
			"nextPageToken": nextToken,
		})
	}
}

// GetEventHandler handles GET /audit/events/{eventId}.
func GetEventHandler(store *AuditStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authz.IdentityFromContext(r.Context())
		if !ok || id.User == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		event, err := store.GetByID(chi.URLParam(r, "eventId"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get audit event: %v", err))
			return
		}
		if event == nil || event.Actor != id.User {
			writeError(w, http.StatusNotFound, "audit event not found")
			return
		}
		writeJSON(w, http.StatusOK, eventToResponse(event))
	}
}

// auditEventResponse is the API shape of an audit event.
type auditEventResponse struct {
	ID           string `json:"id"`
	Actor        string `json:"actor"`
	RequestID    string `json:"requestId,omitempty"`
	Action       string `json:"action"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
	RegistryID   string `json:"registryId,omitempty"`
	Outcome      string `json:"outcome"`
	StatusCode   int    `json:"statusCode"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	DurationMs   int64  `json:"durationMs"`
	CreatedAt    string `json:"createdAt"`
}

func eventToResponse(event *AuditEvent) auditEventResponse {
	return auditEventResponse{
		ID:           event.ID,
		Actor:        event.Actor,
		RequestID:    event.RequestID,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		RegistryID:   event.RegistryID,
		Outcome:      event.Outcome,
		StatusCode:   event.StatusCode,
		Method:       event.Method,
		Path:         event.Path,
		DurationMs:   event.DurationMs,
		CreatedAt:    event.CreatedAt.Format(time.RFC3339),
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
