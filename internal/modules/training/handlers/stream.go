package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/entangler/internal/events"
)

// streamMessage is the wire format for run progress frames.
type streamMessage struct {
	Type      string                 `json:"type"`
	RunID     string                 `json:"run_id"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// HandleStreamRun handles GET /api/training/runs/{id}/stream (WebSocket).
// It forwards episode progress and the terminal event of one run, then
// closes. Events arriving faster than the client reads are dropped.
func (h *Handler) HandleStreamRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if _, err := h.service.Run(runID); err != nil {
		h.respondRunError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	eventChan := make(chan *events.Event, 100)
	forward := func(event *events.Event) {
		if event.RunID != runID {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("run_id", runID).
				Str("event_type", string(event.Type)).
				Msg("Stream channel full, dropping event")
		}
	}

	for _, t := range []events.EventType{
		events.EpisodeCompleted,
		events.RunCompleted,
		events.RunFailed,
	} {
		cancel := h.bus.Subscribe(t, forward)
		defer cancel()
	}

	h.log.Info().Str("run_id", runID).Msg("Client connected to run stream")

	ctx := r.Context()
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("run_id", runID).Msg("Client disconnected from run stream")
			return

		case event := <-eventChan:
			msg := streamMessage{
				Type:      string(event.Type),
				RunID:     event.RunID,
				Timestamp: event.Timestamp.Format(time.RFC3339),
				Data:      event.Data,
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				h.log.Debug().Err(err).Str("run_id", runID).Msg("Stream write failed")
				return
			}
			if event.Type == events.RunCompleted || event.Type == events.RunFailed {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}

		case <-heartbeat.C:
			msg := streamMessage{
				Type:      "heartbeat",
				RunID:     runID,
				Timestamp: time.Now().Format(time.RFC3339),
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}
