package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the id or join code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a participant id is unknown.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrTemplateNotFound indicates the template content could not be loaded.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrSessionCancelled rejects submissions to a cancelled session.
	ErrSessionCancelled = errors.New("session has been cancelled")
	// ErrSessionEnded rejects submissions to (and joins of) a completed session.
	ErrSessionEnded = errors.New("session has ended")
	// ErrSessionNotStarted rejects submissions while the session is still waiting.
	ErrSessionNotStarted = errors.New("session has not started yet")

	// ErrInvalidStatus rejects status values outside the closed enum or
	// transitions the lifecycle does not allow.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNoParticipants rejects starting a session nobody has joined.
	ErrNoParticipants = errors.New("session has no participants")
	// ErrInvalidJoinCode rejects join codes that are not 6 numeric digits.
	ErrInvalidJoinCode = errors.New("join code must be 6 digits")
	// ErrInvalidName rejects empty or oversized participant names.
	ErrInvalidName = errors.New("participant name must be 1-50 characters")
	// ErrNoUpdate rejects a session update carrying neither (or both of)
	// a status and a current-question change.
	ErrNoUpdate = errors.New("no valid update provided")
	// ErrEmptyTemplate rejects creating a session from a template with no questions.
	ErrEmptyTemplate = errors.New("template must have at least one question")
)
