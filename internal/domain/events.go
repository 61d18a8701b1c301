package domain

import "time"

// Event types pushed over a session's stream. The set is closed: subscribers
// switch on the "type" discriminator and can ignore unknown fields.
const (
	EventConnected          = "connected"
	EventHeartbeat          = "heartbeat"
	EventParticipantJoined  = "participant_joined"
	EventLeaderboardUpdated = "leaderboard_updated"
	EventStatusChanged      = "status_changed"
	EventQuestionChanged    = "question_changed"
)

// ConnectedEvent greets a freshly opened stream with its session id.
type ConnectedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

func NewConnectedEvent(sessionID string) ConnectedEvent {
	return ConnectedEvent{Type: EventConnected, SessionID: sessionID}
}

// HeartbeatEvent keeps idle connections alive through intermediaries.
type HeartbeatEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func NewHeartbeatEvent(now time.Time) HeartbeatEvent {
	return HeartbeatEvent{Type: EventHeartbeat, Timestamp: now.UnixMilli()}
}

// EventParticipant is the participant summary carried by join events.
type EventParticipant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type ParticipantJoinedEvent struct {
	Type        string           `json:"type"`
	Participant EventParticipant `json:"participant"`
}

func NewParticipantJoinedEvent(p Participant) ParticipantJoinedEvent {
	return ParticipantJoinedEvent{
		Type:        EventParticipantJoined,
		Participant: EventParticipant{ID: p.ID, Name: p.Name, Score: p.Score},
	}
}

type LeaderboardUpdatedEvent struct {
	Type        string             `json:"type"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

func NewLeaderboardUpdatedEvent(entries []LeaderboardEntry) LeaderboardUpdatedEvent {
	return LeaderboardUpdatedEvent{Type: EventLeaderboardUpdated, Leaderboard: entries}
}

type StatusChangedEvent struct {
	Type   string        `json:"type"`
	Status SessionStatus `json:"status"`
}

func NewStatusChangedEvent(status SessionStatus) StatusChangedEvent {
	return StatusChangedEvent{Type: EventStatusChanged, Status: status}
}

// QuestionChangedEvent always carries currentQuestionId, JSON null when the
// host cleared the active question.
type QuestionChangedEvent struct {
	Type              string  `json:"type"`
	CurrentQuestionID *string `json:"currentQuestionId"`
}

func NewQuestionChangedEvent(questionID *string) QuestionChangedEvent {
	return QuestionChangedEvent{Type: EventQuestionChanged, CurrentQuestionID: questionID}
}
