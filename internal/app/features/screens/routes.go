// internal/app/features/screens/routes.go
package screens

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the screen routes under the path where this router is
// mounted (typically "/screens" from bootstrap).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeCatalog)

	r.Route("/{screen}", func(sr chi.Router) {
		sr.Get("/", h.ServeView)
		sr.Get("/export.csv", h.ServeExport)
		sr.Post("/refresh", h.ServeRefresh)
		sr.Post("/rows/{key}/{verb}", h.ServeAction)
		sr.Post("/batch/{verb}", h.ServeBatch)
	})

	return r
}

// SessionRoutes mounts DELETE / (typically at "/session"), which releases
// every console of the caller's session.
func SessionRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Delete("/", h.ServeEndSession)
	return r
}
