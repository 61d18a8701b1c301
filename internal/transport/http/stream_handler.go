package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kuiz-session-service/internal/app"
	"kuiz-session-service/internal/domain"
	"kuiz-session-service/internal/pubsub"
)

// StreamHandler serves GET /api/sessions/{id}/stream as Server-Sent Events.
// Each connection is one subscriber channel: registered on open, fed by the
// broker plus a periodic heartbeat, deregistered on any exit path.
type StreamHandler struct {
	service   *app.SessionService
	broker    pubsub.Broker
	heartbeat time.Duration
}

func NewStreamHandler(service *app.SessionService, broker pubsub.Broker, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{service: service, broker: broker, heartbeat: heartbeat}
}

func (h *StreamHandler) ServeStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	// Validate before committing to the stream so a bad id still gets a
	// regular 404 response.
	if err := h.service.SessionExists(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.broker.Subscribe(sessionID)
	defer cancel()

	if err := writeSSE(w, flusher, domain.NewConnectedEvent(sessionID)); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-events:
			if !ok {
				// Pruned by the broker or force-closed at shutdown.
				return
			}
			if err := writeSSERaw(w, flusher, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeSSE(w, flusher, domain.NewHeartbeatEvent(time.Now())); err != nil {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writeSSERaw(w, flusher, data)
}

func writeSSERaw(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
