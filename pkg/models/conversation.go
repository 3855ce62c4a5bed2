package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ChatSession groups turns under one (user, profile) pair.
type ChatSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProfileID uuid.UUID `json:"profile_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one side of an exchange in the authoritative log. Within a
// session, messages are totally ordered by (created_at, id); the user message
// always precedes its paired agent message.
type ChatMessage struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CachedTurn is the serialized projection of a message held in the
// transcript recency cache. It is derived and non-authoritative.
type CachedTurn struct {
	Role    Sender `json:"role"`
	Content string `json:"content"`
}
