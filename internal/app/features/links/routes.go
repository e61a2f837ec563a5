// internal/app/features/links/routes.go
package links

import "github.com/go-chi/chi/v5"

// GroupRoutes returns the router mounted at /api/groups/{id}/links.
func GroupRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleAdd)
	r.Put("/order", h.HandleReorder)
	return r
}

// Routes returns the router mounted at /api/links.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
