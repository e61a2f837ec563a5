// internal/app/features/entries/routes.go
package entries

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted at /api/entries.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.ServeEntry)
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)
	return r
}
