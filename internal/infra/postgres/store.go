package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"kuiz-session-service/internal/domain"
)

// Store is the durable app.Store backed by Postgres through bun. Score
// increments happen as a single UPDATE expression so concurrent submissions
// never lose updates.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string     `bun:"id,pk"`
	Code              string     `bun:"code"`
	TemplateID        string     `bun:"template_id"`
	HostID            string     `bun:"host_id"`
	Status            string     `bun:"status"`
	Mode              string     `bun:"mode"`
	CurrentQuestionID *string    `bun:"current_question_id"`
	QuestionIDs       []string   `bun:"question_ids,array"`
	QuestionCount     int        `bun:"question_count"`
	CreatedAt         time.Time  `bun:"created_at"`
	StartedAt         *time.Time `bun:"started_at"`
	EndedAt           *time.Time `bun:"ended_at"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID        string    `bun:"id,pk"`
	SessionID string    `bun:"session_id"`
	Name      string    `bun:"name"`
	Score     int       `bun:"score"`
	JoinedAt  time.Time `bun:"joined_at"`
}

type responseRow struct {
	bun.BaseModel `bun:"table:responses,alias:r"`

	ID            string    `bun:"id,pk"`
	SessionID     string    `bun:"session_id"`
	QuestionID    string    `bun:"question_id"`
	ParticipantID string    `bun:"participant_id"`
	Answer        string    `bun:"answer"`
	IsCorrect     bool      `bun:"is_correct"`
	Points        int       `bun:"points"`
	CreatedAt     time.Time `bun:"created_at"`
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	row := sessionToRow(session)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session: %w", err)
	}
	return rowToSession(row), nil
}

func (s *Store) GetSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).Where("s.code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("select session by code: %w", err)
	}
	return rowToSession(row), nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status domain.SessionStatus, startedAt, endedAt *time.Time) error {
	q := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("status = ?", string(status)).
		Where("id = ?", id)
	if startedAt != nil {
		q = q.Set("started_at = ?", *startedAt)
	}
	if endedAt != nil {
		q = q.Set("ended_at = ?", *endedAt)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

func (s *Store) UpdateCurrentQuestion(ctx context.Context, id string, questionID *string) error {
	res, err := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("current_question_id = ?", questionID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update current question: %w", err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

func (s *Store) CreateParticipant(ctx context.Context, participant *domain.Participant) error {
	row := &participantRow{
		ID:        participant.ID,
		SessionID: participant.SessionID,
		Name:      participant.Name,
		Score:     participant.Score,
		JoinedAt:  participant.JoinedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Store) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	count, err := s.db.NewSelect().Model((*participantRow)(nil)).
		Where("p.session_id = ?", sessionID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

func (s *Store) IncrementScore(ctx context.Context, participantID string, points int) error {
	res, err := s.db.NewUpdate().Model((*participantRow)(nil)).
		Set("score = score + ?", points).
		Where("id = ?", participantID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	return requireRow(res, domain.ErrParticipantNotFound)
}

func (s *Store) CreateResponse(ctx context.Context, response *domain.Response) error {
	row := &responseRow{
		ID:            response.ID,
		SessionID:     response.SessionID,
		QuestionID:    response.QuestionID,
		ParticipantID: response.ParticipantID,
		Answer:        response.Answer,
		IsCorrect:     response.IsCorrect,
		Points:        response.Points,
		CreatedAt:     response.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	var rows []struct {
		ID            string `bun:"id"`
		Name          string `bun:"name"`
		Score         int    `bun:"score"`
		AnsweredCount int    `bun:"answered_count"`
	}
	err := s.db.NewSelect().
		TableExpr("participants AS p").
		ColumnExpr("p.id, p.name, p.score").
		ColumnExpr("count(r.id) AS answered_count").
		Join("LEFT JOIN responses AS r ON r.participant_id = p.id").
		Where("p.session_id = ?", sessionID).
		GroupExpr("p.id, p.name, p.score, p.joined_at").
		OrderExpr("p.score DESC, p.joined_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.LeaderboardEntry{
			ID:            r.ID,
			Name:          r.Name,
			Score:         r.Score,
			AnsweredCount: r.AnsweredCount,
		}
	}
	return entries, nil
}

func sessionToRow(session *domain.Session) *sessionRow {
	return &sessionRow{
		ID:                session.ID,
		Code:              session.Code,
		TemplateID:        session.TemplateID,
		HostID:            session.HostID,
		Status:            string(session.Status),
		Mode:              string(session.Mode),
		CurrentQuestionID: session.CurrentQuestionID,
		QuestionIDs:       session.QuestionIDs,
		QuestionCount:     session.QuestionCount,
		CreatedAt:         session.CreatedAt,
		StartedAt:         session.StartedAt,
		EndedAt:           session.EndedAt,
	}
}

func rowToSession(row *sessionRow) domain.Session {
	return domain.Session{
		ID:                row.ID,
		Code:              row.Code,
		TemplateID:        row.TemplateID,
		HostID:            row.HostID,
		Status:            domain.SessionStatus(row.Status),
		Mode:              domain.SessionMode(row.Mode),
		CurrentQuestionID: row.CurrentQuestionID,
		QuestionIDs:       row.QuestionIDs,
		QuestionCount:     row.QuestionCount,
		CreatedAt:         row.CreatedAt,
		StartedAt:         row.StartedAt,
		EndedAt:           row.EndedAt,
	}
}

func requireRow(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing
	}
	return nil
}
