package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kuiz-session-service/internal/domain"
)

// Store is an in-memory implementation of app.Store, used for tests and for
// running the service without Postgres configured. All mutation goes through
// a single mutex; IncrementScore is therefore atomic with respect to
// concurrent submissions.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.Session
	byCode       map[string]string
	participants map[string]*domain.Participant
	responses    map[string][]domain.Response // keyed by session id
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]*domain.Session),
		byCode:       make(map[string]string),
		participants: make(map[string]*domain.Participant),
		responses:    make(map[string][]domain.Response),
	}
}

func (s *Store) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	s.byCode[session.Code] = session.ID
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *session, nil
}

func (s *Store) GetSessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *s.sessions[id], nil
}

func (s *Store) UpdateSessionStatus(_ context.Context, id string, status domain.SessionStatus, startedAt, endedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Status = status
	if startedAt != nil {
		session.StartedAt = startedAt
	}
	if endedAt != nil {
		session.EndedAt = endedAt
	}
	return nil
}

func (s *Store) UpdateCurrentQuestion(_ context.Context, id string, questionID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.CurrentQuestionID = questionID
	return nil
}

func (s *Store) CreateParticipant(_ context.Context, participant *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[participant.SessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	copied := *participant
	s.participants[participant.ID] = &copied
	return nil
}

func (s *Store) CountParticipants(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (s *Store) IncrementScore(_ context.Context, participantID string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	participant.Score += points
	return nil
}

func (s *Store) CreateResponse(_ context.Context, response *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[response.SessionID] = append(s.responses[response.SessionID], *response)
	return nil
}

func (s *Store) Leaderboard(_ context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answered := make(map[string]int)
	for _, r := range s.responses[sessionID] {
		answered[r.ParticipantID]++
	}

	type standing struct {
		entry    domain.LeaderboardEntry
		joinedAt time.Time
	}
	standings := make([]standing, 0)
	for _, p := range s.participants {
		if p.SessionID != sessionID {
			continue
		}
		standings = append(standings, standing{
			entry: domain.LeaderboardEntry{
				ID:            p.ID,
				Name:          p.Name,
				Score:         p.Score,
				AnsweredCount: answered[p.ID],
			},
			joinedAt: p.JoinedAt,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].entry.Score != standings[j].entry.Score {
			return standings[i].entry.Score > standings[j].entry.Score
		}
		return standings[i].joinedAt.Before(standings[j].joinedAt)
	})

	entries := make([]domain.LeaderboardEntry, len(standings))
	for i, st := range standings {
		entries[i] = st.entry
	}
	return entries, nil
}
