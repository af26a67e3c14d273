package registry

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the registry authoring API. It is
// mounted under /registries. Extension functions are applied inside the
// /{registryId} subtree so other packages (export, analytics) can attach
// per-registry routes without a second route definition for the param.
func Router(store *Store, extensions ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Get("/", ListRegistriesHandler(store))
	r.Post("/", CreateRegistryHandler(store))

	r.Route("/{registryId}", func(r chi.Router) {
		r.Get("/", GetRegistryHandler(store))
		r.Patch("/", UpdateRegistryHandler(store))
		r.Delete("/", DeleteRegistryHandler(store))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", ListItemsHandler(store))
			r.Post("/", CreateItemHandler(store))

			r.Route("/{itemId}", func(r chi.Router) {
				r.Get("/", GetItemHandler(store))
				r.Put("/", UpdateItemHandler(store))
				r.Delete("/", DeleteItemHandler(store))

				r.Get("/files", ListFilesHandler(store))
				r.Put("/files", UpsertFileHandler(store))
				r.Delete("/files/{fileId}", DeleteFileHandler(store))
			})
		})

		for _, extend := range extensions {
			extend(r)
		}
	})

	return r
}
