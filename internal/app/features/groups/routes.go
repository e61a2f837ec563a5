// internal/app/features/groups/routes.go
package groups

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the /api/groups router. Callers mount it behind
// auth.RequireSignedIn.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// LIST / CREATE
	r.Get("/", h.ServeGroupsList)
	r.Post("/", h.HandleCreateGroup)

	// VIEW / EDIT / DELETE
	r.Get("/{id}", h.ServeGroup)
	r.Patch("/{id}", h.HandleEditGroup)
	r.Put("/{id}/current-members", h.HandleSetCurrentMembers)
	r.Delete("/{id}", h.HandleDeleteGroup)

	return r
}
