package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries", h.List)
	r.Post("/entries", h.Create)
	r.Get("/trial-balance", h.TrialBalance)
}
