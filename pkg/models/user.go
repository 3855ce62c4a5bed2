package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account created through phone OTP onboarding.
type User struct {
	ID         uuid.UUID `json:"id"`
	Phone      string    `json:"phone"`
	Email      *string   `json:"email,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// OTP is a one-time code issued for a phone number.
type OTP struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Code      string    `json:"-"`
	IPAddress string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code is past its validity window.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// RefreshToken is a stored long-lived token used to mint new access tokens.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
