package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the request/response training routes. The stream
// route is registered separately because it must live outside any
// request-timeout middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/training", func(r chi.Router) {
		r.Post("/runs", h.HandleStartRun)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
		r.Get("/runs/{id}/episodes", h.HandleListEpisodes)
		r.Get("/runs/{id}/curve", h.HandleGetCurve)
	})
}

// RegisterStreamRoutes registers the long-lived WebSocket stream route. A
// training run can outlive any sane request timeout, so callers mount this
// outside the timeout middleware that covers the REST routes.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/training/runs/{id}/stream", h.HandleStreamRun)
}
