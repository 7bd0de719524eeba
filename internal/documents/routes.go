package documents

import "github.com/go-chi/chi/v5"

// MountRoutes registers posting and document routes. Repost is mounted by the
// router under /ledger.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", h.PostSale)
	r.Post("/purchases", h.PostPurchase)
	r.Route("/documents/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/cancel", h.Cancel)
		r.Post("/lock", h.Lock)
	})
}
