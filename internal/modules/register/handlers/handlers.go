// Package handlers provides HTTP handlers for direct register simulation:
// inspecting gate catalogs and applying gate sequences outside of training.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/entangler/internal/modules/register"
	"github.com/aristath/entangler/pkg/linalg"
)

// Handler handles register HTTP requests. Environments are constructed per
// request; nothing is shared between calls.
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new register handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "register").Logger(),
	}
}

// ApplyRequest configures a register and a gate sequence to run through it.
// Omitted configuration fields keep their defaults.
type ApplyRequest struct {
	register.Config
	Actions []int `json:"actions"`
}

// StepResult reports the outcome of one applied gate.
type StepResult struct {
	Action int     `json:"action"`
	Gate   string  `json:"gate"`
	SRV    []int   `json:"srv"`
	Reward float64 `json:"reward"`
	Done   bool    `json:"done"`
}

// Amplitude is one complex state-vector component.
type Amplitude struct {
	Real float64 `json:"real"`
	Imag float64 `json:"imag"`
}

// ActionEntry is one row of the gate catalog listing.
type ActionEntry struct {
	Index int     `json:"index"`
	Kind  string  `json:"kind"`
	Ion   int     `json:"ion"`
	Theta float64 `json:"theta"`
	Phi   float64 `json:"phi"`
	Label string  `json:"label"`
}

// HandleApply handles POST /api/register/apply
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	req := ApplyRequest{Config: register.DefaultConfig()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	env, err := register.New(req.Config, h.log)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	catalog := env.Actions()
	steps := make([]StepResult, 0, len(req.Actions))
	for _, action := range req.Actions {
		_, reward, done, err := env.Step(action)
		if err != nil {
			if errors.Is(err, register.ErrInvalidAction) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.log.Error().Err(err).Msg("Gate application failed")
			http.Error(w, "Gate application failed", http.StatusInternalServerError)
			return
		}
		srv, err := env.SRV()
		if err != nil {
			h.log.Error().Err(err).Msg("SRV computation failed")
			http.Error(w, "SRV computation failed", http.StatusInternalServerError)
			return
		}
		steps = append(steps, StepResult{
			Action: action,
			Gate:   catalog[action].Describe(),
			SRV:    srv,
			Reward: reward,
			Done:   done,
		})
	}

	finalSRV, err := env.SRV()
	if err != nil {
		h.log.Error().Err(err).Msg("SRV computation failed")
		http.Error(w, "SRV computation failed", http.StatusInternalServerError)
		return
	}

	amps := h.amplitudes(env)
	response := map[string]interface{}{
		"data": map[string]interface{}{
			"steps":      steps,
			"srv":        finalSRV,
			"srv_label":  finalSRV.String(),
			"done":       env.Done(),
			"num_steps":  env.Steps(),
			"amplitudes": amps.components,
			"norm":       amps.norm,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListActions handles GET /api/register/actions
func (h *Handler) HandleListActions(w http.ResponseWriter, r *http.Request) {
	cfg := register.DefaultConfig()

	q := r.URL.Query()
	if raw := q.Get("num_ions"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid num_ions", http.StatusBadRequest)
			return
		}
		cfg.NumIons = n
	}
	if raw := q.Get("dim"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid dim", http.StatusBadRequest)
			return
		}
		cfg.Dim = n
	}
	for param, target := range map[string]*[]float64{
		"pulse_angles": &cfg.Phases.PulseAngles,
		"pulse_phases": &cfg.Phases.PulsePhases,
		"ms_phases":    &cfg.Phases.MSPhases,
	} {
		if raw := q.Get(param); raw != "" {
			vals, err := parseFloats(raw)
			if err != nil {
				http.Error(w, "Invalid "+param, http.StatusBadRequest)
				return
			}
			*target = vals
		}
	}

	// The goal is irrelevant to the catalog; substitute the trivial one so
	// validation passes for any register size.
	goal := make([]int, cfg.NumIons)
	for i := range goal {
		goal[i] = 1
	}
	cfg.Goals = [][]int{goal}

	env, err := register.New(cfg, h.log)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gates := env.Actions()
	entries := make([]ActionEntry, len(gates))
	for i, g := range gates {
		entries[i] = ActionEntry{
			Index: i,
			Kind:  string(g.Kind),
			Ion:   g.Ion,
			Theta: g.Theta,
			Phi:   g.Phi,
			Label: g.Describe(),
		}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"actions":  entries,
			"count":    len(entries),
			"num_ions": cfg.NumIons,
			"dim":      cfg.Dim,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

type amplitudeDump struct {
	components []Amplitude
	norm       float64
}

// amplitudes extracts the current state vector and its norm.
func (h *Handler) amplitudes(env *register.Environment) amplitudeDump {
	obs := env.Observation()
	components := make([]Amplitude, len(obs.Amplitudes))
	for i, c := range obs.Amplitudes {
		components[i] = Amplitude{Real: real(c), Imag: imag(c)}
	}
	return amplitudeDump{
		components: components,
		norm:       linalg.Norm(obs.Amplitudes),
	}
}

// parseFloats parses a comma-separated list of radians.
func parseFloats(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
