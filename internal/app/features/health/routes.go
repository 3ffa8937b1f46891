// internal/app/features/health/routes.go
package health

import "github.com/go-chi/chi/v5"

// Routes mounts the probe endpoints. GET and HEAD on / check the audit
// database; /live answers without touching it.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	r.Head("/", h.Serve)
	r.Get("/live", h.ServeLive)
	return r
}
