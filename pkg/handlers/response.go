package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps service-layer sentinel errors onto HTTP responses.
// Unrecognized errors become an opaque 500; the detail stays in the log.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, apperrors.ErrInvalidPhone):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_phone", "phone number is not valid")
	case errors.Is(err, apperrors.ErrOTPInvalid):
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_otp", "OTP code is not valid")
	case errors.Is(err, apperrors.ErrOTPExpired):
		_ = ErrorResponse(w, http.StatusBadRequest, "otp_expired", "OTP code has expired")
	case errors.Is(err, apperrors.ErrTokenInvalid):
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, apperrors.ErrConflict):
		_ = ErrorResponse(w, http.StatusConflict, "conflict", "resource already exists")
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		logger.Warn("Upstream dependency unavailable", zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "upstream_unavailable", "a dependency is temporarily unavailable")
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
