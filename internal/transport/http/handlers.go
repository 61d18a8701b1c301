package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"kuiz-session-service/internal/app"
	"kuiz-session-service/internal/domain"
)

// Handler serves the request/response side of the session API. The
// long-lived push side lives in StreamHandler and WSHandler.
type Handler struct {
	service *app.SessionService
}

func NewHandler(service *app.SessionService) *Handler {
	return &Handler{service: service}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Session not found"})
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Question not found"})
	case errors.Is(err, domain.ErrTemplateNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Template not found"})
	case errors.Is(err, domain.ErrParticipantNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Participant not found"})
	case errors.Is(err, domain.ErrSessionCancelled):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "This session has been cancelled"})
	case errors.Is(err, domain.ErrSessionEnded):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "This session has ended"})
	case errors.Is(err, domain.ErrSessionNotStarted):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "This session hasn't started yet"})
	case errors.Is(err, domain.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid status"})
	case errors.Is(err, domain.ErrNoParticipants):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Session needs at least one participant to start"})
	case errors.Is(err, domain.ErrInvalidJoinCode):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Code must be 6 digits"})
	case errors.Is(err, domain.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Name is required and must be at most 50 characters"})
	case errors.Is(err, domain.ErrNoUpdate):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No valid update provided"})
	case errors.Is(err, domain.ErrEmptyTemplate):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Template must have at least one question"})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

type createSessionRequest struct {
	TemplateID    string             `json:"templateId"`
	Mode          domain.SessionMode `json:"mode"`
	QuestionCount int                `json:"questionCount"`
}

// CreateSession handles POST /api/sessions. The caller's identity arrives
// pre-resolved in X-Host-ID; authentication itself is an upstream concern.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	hostID := r.Header.Get("X-Host-ID")
	if hostID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "templateId is required"})
		return
	}

	session, err := h.service.CreateSession(r.Context(), req.TemplateID, hostID, req.Mode, req.QuestionCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /api/sessions/{id}: the snapshot a reconnecting
// client fetches before trusting its stream again.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type joinRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Join handles POST /api/sessions/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	result, err := h.service.Join(r.Context(), req.Code, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			// The join flow keys on the code, not an id; say so.
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Session not found. Please check the code."})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type submitRequest struct {
	SessionID     string `json:"sessionId"`
	QuestionID    string `json:"questionId"`
	ParticipantID string `json:"participantId"`
	Answer        string `json:"answer"`
	TimedOut      bool   `json:"timedOut"`
}

// SubmitAnswer handles POST /api/responses.
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.SessionID == "" || req.QuestionID == "" || req.ParticipantID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "sessionId, questionId and participantId are required"})
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), req.SessionID, req.QuestionID, req.ParticipantID, req.Answer, req.TimedOut)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type updateSessionRequest struct {
	Status *domain.SessionStatus `json:"status"`
	// Distinguishes "not sent" from an explicit null, which clears the
	// active question.
	CurrentQuestionID json.RawMessage `json:"currentQuestionId"`
}

// UpdateSession handles PATCH /api/sessions/{id}: exactly one of a status
// transition or a current-question change per request, never both.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	hasStatus := req.Status != nil
	hasQuestion := len(req.CurrentQuestionID) > 0
	if hasStatus == hasQuestion {
		writeError(w, domain.ErrNoUpdate)
		return
	}

	if hasStatus {
		session, err := h.service.UpdateStatus(r.Context(), id, *req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
		return
	}

	var questionID *string
	if err := json.Unmarshal(req.CurrentQuestionID, &questionID); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "currentQuestionId must be a string or null"})
		return
	}
	session, err := h.service.SetCurrentQuestion(r.Context(), id, questionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
