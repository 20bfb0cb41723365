package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all register routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/register", func(r chi.Router) {
		r.Post("/apply", h.HandleApply)
		r.Get("/actions", h.HandleListActions)
	})
}
