package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"lsat-session-service/internal/app"
	"lsat-session-service/internal/domain"
	"go.uber.org/zap"
)

// SessionHandler serves the synchronous session lifecycle endpoints.
type SessionHandler struct {
	service *app.SessionService
	log     *zap.Logger
}

func NewSessionHandler(service *app.SessionService, log *zap.Logger) *SessionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{service: service, log: log}
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	HostToken string `json:"host_token"`
}

// joinSessionResponse wholesale-returns the relay's state at join time so a
// participant is initialized before its streaming channel even opens.
type joinSessionResponse struct {
	ParticipantToken string             `json:"participant_token"`
	SessionID        string             `json:"session_id"`
	State            domain.AppState    `json:"state"`
	Highlights       []domain.Highlight `json:"highlights"`
	Search           string             `json:"search"`
	View             domain.ViewMode    `json:"view"`
	QuestionIndex    domain.NavPosition `json:"question_index"`
}

type leaveSessionRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var state domain.AppState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid state body"})
		return
	}
	creds := h.service.Create(r.Context(), state)
	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID: creds.SessionID,
		HostToken: creds.HostToken,
	})
}

// Join handles POST /sessions/{id}/join.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	result, err := h.service.Join(r.Context(), sessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, joinSessionResponse{
		ParticipantToken: result.ParticipantToken,
		SessionID:        sessionID,
		State:            result.Snapshot.State,
		Highlights:       result.Snapshot.Highlights,
		Search:           result.Snapshot.Search,
		View:             result.Snapshot.View,
		QuestionIndex:    result.Snapshot.QuestionIndex,
	})
}

// Leave handles POST /sessions/leave and POST /sessions/{id}/leave.
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	var req leaveSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid leave body"})
		return
	}
	if id := r.PathValue("id"); id != "" {
		req.SessionID = id
	}
	if err := h.service.Leave(r.Context(), req.SessionID, req.Token); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
