package analytics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/authz"
	"github.com/uifoundry/registry-studio/pkg/registry"
)

// dayResponse is one day of counters.
type dayResponse struct {
	Date     string `json:"date"`
	Views    int64  `json:"views"`
	Installs int64  `json:"installs"`
}

// analyticsResponse is the API shape of an analytics query.
type analyticsResponse struct {
	RegistryID    string        `json:"registryId"`
	From          string        `json:"from,omitempty"`
	To            string        `json:"to,omitempty"`
	TotalViews    int64         `json:"totalViews"`
	TotalInstalls int64         `json:"totalInstalls"`
	Days          []dayResponse `json:"days"`
}

// Handler handles GET /registries/{registryId}/analytics?from=&to=.
// Dates are inclusive and use the 2006-01-02 format; both bounds are
// optional.
func Handler(store *Store, regStore *registry.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registryID := chi.URLParam(r, "registryId")

		id, ok := authz.IdentityFromContext(r.Context())
		if !ok || id.User == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		reg, err := regStore.GetRegistry(registryID)
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

		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		for _, bound := range []string{from, to} {
			if bound == "" {
				continue
			}
			if _, err := time.Parse(DateFormat, bound); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", bound))
				return
			}
		}

		records, err := store.Range(registryID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query analytics: %v", err))
			return
		}

		resp := analyticsResponse{
			RegistryID: registryID,
			From:       from,
			To:         to,
			Days:       make([]dayResponse, 0, len(records)),
		}
		for _, rec := range records {
			resp.TotalViews += rec.Views
			resp.TotalInstalls += rec.Installs
			resp.Days = append(resp.Days, dayResponse{
				Date:     rec.Date,
				Views:    rec.Views,
				Installs: rec.Installs,
			})
		}
		writeJSON(w, http.StatusOK, resp)
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
