package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/auth"
	"github.com/astrodarshan/astro-engine/pkg/services"
)

// ProfileHandler handles birth profile CRUD endpoints. All routes require
// authentication; ownership is enforced in the service layer.
type ProfileHandler struct {
	profiles services.ProfileService
	authn    *auth.Middleware
	logger   *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles services.ProfileService, authn *auth.Middleware, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, authn: authn, logger: logger}
}

// RegisterRoutes registers the profile handler's routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/profiles", h.authn.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/profiles", h.authn.RequireAuth(h.List))
	mux.HandleFunc("GET /api/profiles/{id}", h.authn.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/profiles/{id}", h.authn.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/profiles/{id}", h.authn.RequireAuth(h.Delete))
}

// Create handles POST /api/profiles.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var input services.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	profile, err := h.profiles.Create(r.Context(), userID, input)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, profile)
}

// List handles GET /api/profiles.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	profiles, err := h.profiles.List(r.Context(), userID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, profiles)
}

// Get handles GET /api/profiles/{id}.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	profileID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID, profileID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, profile)
}

// Update handles PUT /api/profiles/{id}.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	profileID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var input services.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	profile, err := h.profiles.Update(r.Context(), userID, profileID, input)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, profile)
}

// Delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	profileID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.profiles.Delete(r.Context(), userID, profileID); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses a UUID path segment, writing a 400 when it is malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed "+name)
		return uuid.Nil, false
	}
	return id, true
}
