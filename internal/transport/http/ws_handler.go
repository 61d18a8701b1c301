package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"kuiz-session-service/internal/app"
	"kuiz-session-service/internal/domain"
	"kuiz-session-service/internal/pubsub"
)

// WSHandler is the websocket flavor of the session stream: the same broker
// feed as the SSE endpoint, plus an inbound lane so participant clients can
// submit answers over the already-open socket.
type WSHandler struct {
	service  *app.SessionService
	broker   pubsub.Broker
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, broker pubsub.Broker) *WSHandler {
	return &WSHandler{
		service: service,
		broker:  broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	TimedOut   bool   `json:"timedOut"`
}

type wsEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type wsErrorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and bridges the connection to the broker and
// the submission use case. The participantId query param is optional: a host
// dashboard subscribes without one and simply never submits.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	participantID := r.URL.Query().Get("participantId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	if err := h.service.SessionExists(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.broker.Subscribe(sessionID)
	defer cancel()

	send := make(chan wsEnvelope, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// One writer goroutine owns the connection for writes; the reader loop
	// and the broker relay both go through send.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case data, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- wsEnvelope{Type: "event", Payload: json.RawMessage(data)}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- wsEnvelope{Type: "event", Payload: domain.NewConnectedEvent(sessionID)}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			if participantID == "" {
				send <- wsEnvelope{Type: "error", Payload: wsErrorPayload{Message: "connection has no participantId"}}
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- wsEnvelope{Type: "error", Payload: wsErrorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), sessionID, payload.QuestionID, participantID, payload.Answer, payload.TimedOut)
			if err != nil {
				send <- wsEnvelope{Type: "error", Payload: wsErrorPayload{Message: err.Error()}}
				continue
			}
			send <- wsEnvelope{Type: "answer_result", Payload: result}
		default:
			send <- wsEnvelope{Type: "error", Payload: wsErrorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
