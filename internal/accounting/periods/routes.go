package periods

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{year}/{month}/close", h.Close)
	r.Post("/{year}/{month}/reopen", h.Reopen)
}
