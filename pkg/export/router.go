package export

import (
	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/registry"
)

// Routes registers the export and push endpoints on a router that carries
// a {registryId} URL parameter.
func Routes(svc *Service, store *registry.Store) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/export", ExportHandler(svc, store))
		r.Get("/export", GetExportHandler(store))
		r.Post("/push", PushHandler(svc, store))
	}
}

// Router creates a standalone chi.Router for the export and push API. It
// is mounted under /registries/{registryId}.
func Router(svc *Service, store *registry.Store) chi.Router {
	r := chi.NewRouter()
	Routes(svc, store)(r)
	return r
}
