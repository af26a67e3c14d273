package jobs

import (
	"github.com/go-chi/chi/v5"

	"github.com/uifoundry/registry-studio/pkg/registry"
)

// Router creates a chi.Router for the sync job API. It is mounted under
// /jobs.
func Router(store *JobStore, regStore *registry.Store) chi.Router {
	r := chi.NewRouter()

	r.Get("/", ListJobsHandler(store))
	r.Post("/push", EnqueuePushHandler(store, regStore))
	r.Post("/import", EnqueueImportHandler(store))
	r.Get("/{jobId}", GetJobHandler(store))
	r.Post("/{jobId}/cancel", CancelJobHandler(store))

	return r
}
