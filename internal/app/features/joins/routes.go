// internal/app/features/joins/routes.go
package joins

import "github.com/go-chi/chi/v5"

// EntryRoutes returns the router mounted at /api/entries/{id}/joins.
func EntryRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeEntryJoins)
	r.Get("/stats", h.ServeEntryStats)
	return r
}

// GroupRoutes returns the router mounted at /api/groups/{id}/joins.
func GroupRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.ServeGroupStats)
	return r
}
