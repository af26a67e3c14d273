package server

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/registry"
)

// handleCatalogListing serves the public registry listing at GET /catalog.
func (s *Server) handleCatalogListing(w http.ResponseWriter, r *http.Request) {
	regs, err := s.store.ListPublicRegistries()
	if err != nil {
		s.logger.Error("failed to list public registries", "error", err)
		writeCatalogError(w, http.StatusInternalServerError, "failed to list registries")
		return
	}

	responses := make([]registry.RegistryResponse, 0, len(regs))
	for i := range regs {
		responses = append(responses, registry.ToResponse(&regs[i]))
	}
	writeCatalogJSON(w, http.StatusOK, map[string]any{"registries": responses})
}

// redirectCatalogIndex sends bare registry URLs to the hosted index page.
func (s *Server) redirectCatalogIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, r.URL.Path+"/index.html", http.StatusMovedPermanently)
}

// handleCatalogFile serves one file of a hosted registry's generated
// scaffold at GET /catalog/{ownerId}/{slug}/*. The scaffold is regenerated
// from the data store on each request; the cache middleware in front of
// this handler absorbs repeat reads.
func (s *Server) handleCatalogFile(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerId")
	slug := chi.URLParam(r, "slug")
	filePath := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if filePath == "" {
		filePath = "index.html"
	}

	reg, err := s.store.GetRegistryBySlug(ownerID, slug)
	if err != nil {
		s.logger.Error("failed to load registry for catalog", "owner", ownerID, "slug", slug, "error", err)
		writeCatalogError(w, http.StatusInternalServerError, "failed to load registry")
		return
	}
	if reg == nil || !reg.IsPublic {
		writeCatalogError(w, http.StatusNotFound, "registry not found")
		return
	}

	base := s.cfg.PublicBaseURL + "/catalog/" + ownerID + "/" + slug + "/"
	files, err := s.exportSvc.GenerateScaffold(reg.ID, base)
	if err != nil {
		s.logger.Error("failed to generate catalog scaffold", "registryID", reg.ID, "error", err)
		writeCatalogError(w, http.StatusInternalServerError, "failed to generate registry files")
		return
	}

	for _, f := range files {
		if f.Path != filePath {
			continue
		}
		s.recordCatalogAccess(reg.ID, filePath)
		w.Header().Set("Content-Type", catalogContentType(filePath))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(f.Content)
		return
	}
	writeCatalogError(w, http.StatusNotFound, "file not found")
}

// recordCatalogAccess bumps the daily analytics counters. Fetching an item
// manifest under r/ is what the shadcn CLI does on install; fetching the
// registry index counts as a view. Failures are logged, never surfaced.
func (s *Server) recordCatalogAccess(registryID, filePath string) {
	var err error
	switch {
	case strings.HasPrefix(filePath, "r/") && strings.HasSuffix(filePath, ".json"):
		err = s.analytics.RecordInstall(registryID)
	case filePath == "registry.json" || filePath == "index.html":
		err = s.analytics.RecordView(registryID)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("failed to record catalog access", "registryID", registryID, "path", filePath, "error", err)
	}
}

func catalogContentType(filePath string) string {
	switch path.Ext(filePath) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".md":
		return "text/markdown; charset=utf-8"
	default:
		// Component sources (.tsx, .ts, .vue, ...) serve as plain text.
		return "text/plain; charset=utf-8"
	}
}

func writeCatalogJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeCatalogError(w http.ResponseWriter, status int, message string) {
	writeCatalogJSON(w, status, map[string]string{"error": message})
}
