package audit

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the audit API. It is mounted under
// /audit.
func Router(store *AuditStore) chi.Router {
	r := chi.NewRouter()

	r.Get("/events", ListEventsHandler(store))
	r.Get("/events/{eventId}", GetEventHandler(store))

	return r
}
