package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "WAITING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusCancelled  SessionStatus = "CANCELLED"
)

// ValidStatus reports whether s is one of the four known statuses.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status rejects further score mutation.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// SessionMode controls who drives question navigation.
type SessionMode string

const (
	ModeFreePlay       SessionMode = "FREE_PLAY"
	ModeHostControlled SessionMode = "HOST_CONTROLLED"
)

// QuestionType enumerates the supported answer formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionCheckbox       QuestionType = "CHECKBOX"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionImageChoice    QuestionType = "IMAGE_CHOICE"
	QuestionTextInput      QuestionType = "TEXT_INPUT"
)

// Session is a running instance of a template, joined via a 6-digit code.
type Session struct {
	ID                string        `json:"id"`
	Code              string        `json:"code"`
	TemplateID        string        `json:"templateId"`
	HostID            string        `json:"hostId"`
	Status            SessionStatus `json:"status"`
	Mode              SessionMode   `json:"mode"`
	CurrentQuestionID *string       `json:"currentQuestionId"`
	QuestionIDs       []string      `json:"questionIds,omitempty"`
	QuestionCount     int           `json:"questionCount,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	StartedAt         *time.Time    `json:"startedAt"`
	EndedAt           *time.Time    `json:"endedAt"`
}

// Participant is a join-time identity scoped to one session.
type Participant struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Question belongs to a template. CorrectAnswer must never be sent to
// participants before they submit; use Stripped for join/fetch payloads.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Options       []string     `json:"options"`
	Order         int          `json:"order"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Points        int          `json:"points"`
	TimeLimit     int          `json:"timeLimit,omitempty"`
}

// Stripped returns a copy safe to hand to participants.
func (q Question) Stripped() Question {
	q.CorrectAnswer = ""
	return q
}

// Template is an ordered set of questions authored by a host.
type Template struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Stripped returns a copy of the template with every answer key removed.
func (t Template) Stripped() Template {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		qs[i] = q.Stripped()
	}
	t.Questions = qs
	return t
}

// Response is the immutable record of one answer. It is never recomputed
// after creation.
type Response struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	QuestionID    string    `json:"questionId"`
	ParticipantID string    `json:"participantId"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	Points        int       `json:"points"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LeaderboardEntry is the broadcast view of one participant's standing.
type LeaderboardEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	AnsweredCount int    `json:"answeredCount"`
}

// QuestionKey is the lightweight scoring data cached per question.
type QuestionKey struct {
	CorrectAnswer string
	Points        int
}

// AnswerKey maps question IDs to their scoring data for one template.
type AnswerKey map[string]QuestionKey
