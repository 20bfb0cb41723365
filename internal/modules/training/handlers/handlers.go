// Package handlers provides HTTP handlers for training runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/entangler/internal/events"
	"github.com/aristath/entangler/internal/modules/agent"
	"github.com/aristath/entangler/internal/modules/register"
	"github.com/aristath/entangler/internal/modules/training"
)

// defaultRunListLimit caps list responses when no limit is given.
const defaultRunListLimit = 50

// Handler handles training HTTP requests
type Handler struct {
	service *training.Service
	bus     *events.Bus
	log     zerolog.Logger
}

// NewHandler creates a new training handler
func NewHandler(service *training.Service, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
		log:     log.With().Str("handler", "training").Logger(),
	}
}

// HandleStartRun handles POST /api/training/runs.
// Omitted fields keep their defaults, so `{}` starts the reference run.
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	cfg := training.DefaultRunConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.service.StartRun(cfg)
	if err != nil {
		if errors.Is(err, register.ErrInvalidConfig) || errors.Is(err, agent.ErrInvalidConfig) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to start run")
		http.Error(w, "Failed to start run", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, envelope(run))
}

// HandleListRuns handles GET /api/training/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.service.Runs(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}))
}

// HandleGetRun handles GET /api/training/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(chi.URLParam(r, "id"))
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(run))
}

// HandleListEpisodes handles GET /api/training/runs/{id}/episodes
func (h *Handler) HandleListEpisodes(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Episodes(chi.URLParam(r, "id"))
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"episodes": stats,
		"count":    len(stats),
	}))
}

// HandleGetCurve handles GET /api/training/runs/{id}/curve
func (h *Handler) HandleGetCurve(w http.ResponseWriter, r *http.Request) {
	curve, err := h.service.Curve(chi.URLParam(r, "id"))
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(curve))
}

// respondRunError maps service errors to HTTP statuses.
func (h *Handler) respondRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, training.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Msg("Run lookup failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// envelope wraps a payload in the standard data/metadata response shape.
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
