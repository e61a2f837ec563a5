// internal/app/features/public/routes.go
package public

import (
	"github.com/dalemusser/joinlink/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the JSON API mounted at /api/public. Join attempts are
// rate limited per client IP; reads are not.
func Routes(h *Handler, limiter ratelimit.Allower) chi.Router {
	r := chi.NewRouter()

	r.Get("/slugs/{slug}/available", h.ServeSlugAvailable)
	r.Get("/{slug}", h.ServeResolve)
	r.With(ratelimit.Middleware(limiter, "join")).Post("/{slug}/join", h.HandleJoin)

	return r
}

// RedirectRoutes returns the short-link router mounted at /j.
func RedirectRoutes(h *Handler, limiter ratelimit.Allower) chi.Router {
	r := chi.NewRouter()
	r.With(ratelimit.Middleware(limiter, "join")).Get("/{slug}", h.ServeRedirect)
	return r
}
