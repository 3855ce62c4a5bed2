package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrCacheMiss           = errors.New("cache miss")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrOTPInvalid          = errors.New("invalid OTP code")
	ErrOTPExpired          = errors.New("OTP code expired")
	ErrTokenInvalid        = errors.New("invalid or expired token")
	ErrInvalidPhone        = errors.New("invalid phone number")
)
