package http

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"kuiz-session-service/internal/domain"
)

func TestWebSocketAnswerFlow(t *testing.T) {
	server, service := newTestServer(t)
	session, joined := startedSession(t, service)

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + session.ID + "&participantId=" + joined.Participant.ID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Every connection opens with a connected event.
	_, payload := readNext(conn, t, "event")
	if payload["type"] != domain.EventConnected {
		t.Fatalf("expected connected event, got %v", payload["type"])
	}

	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"questionId": "q1",
			"answer":     "Paris",
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// Expect the answer result plus the leaderboard broadcast, in either
	// order: the broker relay and the reader reply race.
	resultSeen := false
	leaderboardSeen := false
	for i := 0; i < 3 && !(resultSeen && leaderboardSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "answer_result":
			resultSeen = true
			if payload["isCorrect"] != true || payload["points"] != float64(10) {
				t.Fatalf("unexpected answer result: %v", payload)
			}
		case "event":
			if payload["type"] == domain.EventLeaderboardUpdated {
				leaderboardSeen = true
			}
		}
	}
	if !resultSeen || !leaderboardSeen {
		t.Fatalf("expected answer_result and leaderboard event, got result=%v leaderboard=%v", resultSeen, leaderboardSeen)
	}
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404 handshake response, got %v", resp)
	}
}

func TestWebSocketAnswerWithoutParticipant(t *testing.T) {
	server, service := newTestServer(t)
	session, _ := startedSession(t, service)

	u := "ws" + server.URL[len("http"):] + "/ws?sessionId=" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "event")

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": "q1", "answer": "Paris"},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	typ, payload := readNext(conn, t, "error")
	if typ != "error" || payload["message"] == "" {
		t.Fatalf("expected error frame, got %s %v", typ, payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
