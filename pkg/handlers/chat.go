package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/auth"
	"github.com/astrodarshan/astro-engine/pkg/services"
)

// ChatHandler handles consultation session endpoints.
type ChatHandler struct {
	consultations services.ConsultationService
	authn         *auth.Middleware
	logger        *zap.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(consultations services.ConsultationService, authn *auth.Middleware, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{consultations: consultations, authn: authn, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.authn.RequireAuth(h.StartSession))
	mux.HandleFunc("POST /api/sessions/{id}/ask", h.authn.RequireAuth(h.Ask))
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.authn.RequireAuth(h.History))
}

type startSessionRequest struct {
	ProfileID string `json:"profile_id"`
}

// StartSession handles POST /api/sessions.
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "profile_id must be a UUID")
		return
	}

	session, err := h.consultations.StartSession(r.Context(), userID, profileID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, session)
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask handles POST /api/sessions/{id}/ask.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	answer, err := h.consultations.Ask(r.Context(), userID, sessionID, strings.TrimSpace(req.Query))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, askResponse{Answer: answer})
}

// History handles GET /api/sessions/{id}/messages.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	turns, err := h.consultations.History(r.Context(), userID, sessionID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, turns)
}
