package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"kuiz-session-service/internal/domain"
	"kuiz-session-service/internal/pubsub"
)

// Store abstracts the durable record of sessions, participants and responses
// (in-memory, Postgres, etc). It is the durability authority: score
// increments are atomic at this boundary, not via in-process locking.
type Store interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	GetSessionByCode(ctx context.Context, code string) (domain.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status domain.SessionStatus, startedAt, endedAt *time.Time) error
	UpdateCurrentQuestion(ctx context.Context, id string, questionID *string) error

	CreateParticipant(ctx context.Context, participant *domain.Participant) error
	CountParticipants(ctx context.Context, sessionID string) (int, error)
	// IncrementScore adds points to the participant's score atomically:
	// concurrent increments must all be applied, none lost.
	IncrementScore(ctx context.Context, participantID string, points int) error

	CreateResponse(ctx context.Context, response *domain.Response) error
	// Leaderboard returns every participant of the session annotated with
	// their answered-question count, ordered score desc, join time asc.
	Leaderboard(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error)
}

// TemplateRepository loads full template content (from cache/backing store).
type TemplateRepository interface {
	GetTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// AnswerKeyRepository serves the lightweight scoring data for a template.
type AnswerKeyRepository interface {
	GetAnswerKey(ctx context.Context, templateID string) (domain.AnswerKey, error)
}

// SessionService contains the live-session use cases: create/join, answer
// scoring, host-driven lifecycle and navigation. Every state change that
// durably commits is followed by a broadcast to the session's subscribers.
type SessionService struct {
	store     Store
	templates TemplateRepository
	keys      AnswerKeyRepository
	broker    pubsub.Broker
	now       func() time.Time
}

func NewSessionService(store Store, templates TemplateRepository, keys AnswerKeyRepository, broker pubsub.Broker) *SessionService {
	return &SessionService{
		store:     store,
		templates: templates,
		keys:      keys,
		broker:    broker,
		now:       time.Now,
	}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(store Store, templates TemplateRepository, keys AnswerKeyRepository, broker pubsub.Broker, now func() time.Time) *SessionService {
	s := NewSessionService(store, templates, keys, broker)
	s.now = now
	return s
}

var joinCodePattern = regexp.MustCompile(`^\d{6}$`)

// CreateSession starts a new session from a template, in WAITING status,
// with a unique 6-digit join code. When 0 < questionCount < total, a uniform
// random subset of question ids is selected for the session.
func (s *SessionService) CreateSession(ctx context.Context, templateID, hostID string, mode domain.SessionMode, questionCount int) (domain.Session, error) {
	tpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.Session{}, err
	}
	if len(tpl.Questions) == 0 {
		return domain.Session{}, domain.ErrEmptyTemplate
	}
	if mode == "" {
		mode = domain.ModeFreePlay
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:         uuid.NewString(),
		Code:       code,
		TemplateID: templateID,
		HostID:     hostID,
		Status:     domain.StatusWaiting,
		Mode:       mode,
		CreatedAt:  s.now(),
	}
	if questionCount > 0 && questionCount < len(tpl.Questions) {
		session.QuestionIDs = sampleQuestionIDs(tpl.Questions, questionCount)
		session.QuestionCount = questionCount
	}

	if err := s.store.CreateSession(ctx, &session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// JoinResult is what a successful join hands back to the participant: the
// session summary with the answer key stripped out, plus their new identity.
type JoinResult struct {
	Session     domain.Session     `json:"session"`
	Template    domain.Template    `json:"template"`
	Participant domain.Participant `json:"participant"`
}

// Join creates a participant in the session matching the code and announces
// it to every open subscriber. Terminal sessions cannot be joined.
func (s *SessionService) Join(ctx context.Context, code, name string) (JoinResult, error) {
	if !joinCodePattern.MatchString(code) {
		return JoinResult{}, domain.ErrInvalidJoinCode
	}
	if name == "" || len(name) > 50 {
		return JoinResult{}, domain.ErrInvalidName
	}

	session, err := s.store.GetSessionByCode(ctx, code)
	if err != nil {
		return JoinResult{}, err
	}
	if session.Status.Terminal() {
		return JoinResult{}, domain.ErrSessionEnded
	}

	tpl, err := s.templates.GetTemplate(ctx, session.TemplateID)
	if err != nil {
		return JoinResult{}, err
	}

	participant := domain.Participant{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Name:      name,
		Score:     0,
		JoinedAt:  s.now(),
	}
	if err := s.store.CreateParticipant(ctx, &participant); err != nil {
		return JoinResult{}, fmt.Errorf("create participant: %w", err)
	}

	s.broker.Publish(session.ID, domain.NewParticipantJoinedEvent(participant))

	return JoinResult{
		Session:     session,
		Template:    tpl.Stripped(),
		Participant: participant,
	}, nil
}

// SubmitResult is the stored response plus the now-revealed correct answer.
type SubmitResult struct {
	domain.Response
	CorrectAnswer string `json:"correctAnswer"`
}

// SubmitAnswer scores one answer against the session's answer key, persists
// the response, applies the score atomically, and broadcasts the recomputed
// leaderboard. Preconditions are checked in order; the first failure wins.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, questionID, participantID, answer string, timedOut bool) (SubmitResult, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	switch session.Status {
	case domain.StatusCancelled:
		return SubmitResult{}, domain.ErrSessionCancelled
	case domain.StatusCompleted:
		return SubmitResult{}, domain.ErrSessionEnded
	case domain.StatusWaiting:
		return SubmitResult{}, domain.ErrSessionNotStarted
	}

	key, err := s.keys.GetAnswerKey(ctx, session.TemplateID)
	if err != nil {
		return SubmitResult{}, err
	}
	questionKey, ok := key[questionID]
	if !ok {
		return SubmitResult{}, domain.ErrQuestionNotFound
	}

	correct, points := domain.Score(questionKey, answer, timedOut)

	response := domain.Response{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		QuestionID:    questionID,
		ParticipantID: participantID,
		Answer:        answer,
		IsCorrect:     correct,
		Points:        points,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateResponse(ctx, &response); err != nil {
		return SubmitResult{}, fmt.Errorf("create response: %w", err)
	}
	if correct {
		if err := s.store.IncrementScore(ctx, participantID, points); err != nil {
			return SubmitResult{}, fmt.Errorf("increment score: %w", err)
		}
	}

	leaderboard, err := s.store.Leaderboard(ctx, sessionID)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("leaderboard: %w", err)
	}
	s.broker.Publish(sessionID, domain.NewLeaderboardUpdatedEvent(leaderboard))

	return SubmitResult{Response: response, CorrectAnswer: questionKey.CorrectAnswer}, nil
}

// UpdateStatus applies a host-driven lifecycle transition and broadcasts it
// after the durable update commits. Only forward transitions are allowed:
// WAITING -> IN_PROGRESS (needs at least one participant),
// WAITING -> CANCELLED, IN_PROGRESS -> COMPLETED | CANCELLED.
func (s *SessionService) UpdateStatus(ctx context.Context, sessionID string, status domain.SessionStatus) (domain.Session, error) {
	if !domain.ValidStatus(status) {
		return domain.Session{}, domain.ErrInvalidStatus
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if !legalTransition(session.Status, status) {
		return domain.Session{}, domain.ErrInvalidStatus
	}

	var startedAt, endedAt *time.Time
	switch status {
	case domain.StatusInProgress:
		count, err := s.store.CountParticipants(ctx, sessionID)
		if err != nil {
			return domain.Session{}, fmt.Errorf("count participants: %w", err)
		}
		if count == 0 {
			return domain.Session{}, domain.ErrNoParticipants
		}
		now := s.now()
		startedAt = &now
	case domain.StatusCompleted:
		now := s.now()
		endedAt = &now
	}

	if err := s.store.UpdateSessionStatus(ctx, sessionID, status, startedAt, endedAt); err != nil {
		return domain.Session{}, fmt.Errorf("update status: %w", err)
	}

	s.broker.Publish(sessionID, domain.NewStatusChangedEvent(status))

	session.Status = status
	if startedAt != nil {
		session.StartedAt = startedAt
	}
	if endedAt != nil {
		session.EndedAt = endedAt
	}
	return session, nil
}

func legalTransition(from, to domain.SessionStatus) bool {
	switch from {
	case domain.StatusWaiting:
		return to == domain.StatusInProgress || to == domain.StatusCancelled
	case domain.StatusInProgress:
		return to == domain.StatusCompleted || to == domain.StatusCancelled
	}
	return false
}

// SetCurrentQuestion persists the host's question navigation (nil clears the
// active question) and announces it. The reference is not validated against
// the session's question set; the host client clamps navigation before
// calling.
func (s *SessionService) SetCurrentQuestion(ctx context.Context, sessionID string, questionID *string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.store.UpdateCurrentQuestion(ctx, sessionID, questionID); err != nil {
		return domain.Session{}, fmt.Errorf("update current question: %w", err)
	}

	s.broker.Publish(sessionID, domain.NewQuestionChangedEvent(questionID))

	session.CurrentQuestionID = questionID
	return session, nil
}

// Snapshot is the reconnect path: a client that dropped its stream re-fetches
// the current session state before relying on new events.
type Snapshot struct {
	Session     domain.Session            `json:"session"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

func (s *SessionService) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	leaderboard, err := s.store.Leaderboard(ctx, sessionID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("leaderboard: %w", err)
	}
	return Snapshot{Session: session, Leaderboard: leaderboard}, nil
}

// SessionExists reports whether a stream may be opened for the session.
func (s *SessionService) SessionExists(ctx context.Context, sessionID string) error {
	_, err := s.store.GetSession(ctx, sessionID)
	return err
}

// uniqueCode draws 6-digit codes until one is free. Collisions are rare with
// 900000 candidates; the attempt cap guards a pathologically full keyspace.
func (s *SessionService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code := generateJoinCode()
		_, err := s.store.GetSessionByCode(ctx, code)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
	}
	return "", fmt.Errorf("could not allocate a unique join code")
}
