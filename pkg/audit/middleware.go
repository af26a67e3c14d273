package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/uifoundry/registry-studio/pkg/authz"
)

// Middleware records an audit event for every mutating API request after
// the handler completes. Writes are best-effort: an audit failure is
// logged, never surfaced to the caller.
func Middleware(store *AuditStore, cfg *AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil || !shouldAudit(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			statusCode := ww.Status()
			if statusCode == 0 {
				statusCode = http.StatusOK
			}
			outcome := outcomeFromStatus(statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			actor := "anonymous"
			if id, ok := authz.IdentityFromContext(r.Context()); ok && id.User != "" {
				actor = id.User
			}

			action, resourceType, resourceID, registryID := describeRequest(r.Method, r.URL.Path)

			event := &AuditEvent{
				ID:           uuid.New().String(),
				Actor:        actor,
				RequestID:    middleware.GetReqID(r.Context()),
				Action:       action,
				ResourceType: resourceType,
				ResourceID:   resourceID,
				RegistryID:   registryID,
				Outcome:      outcome,
				StatusCode:   statusCode,
				Method:       r.Method,
				Path:         r.URL.Path,
				DurationMs:   time.Since(startTime).Milliseconds(),
				CreatedAt:    startTime,
			}

			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event", "error", err, "path", r.URL.Path)
			}
		})
	}
}
