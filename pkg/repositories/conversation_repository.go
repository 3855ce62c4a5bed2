package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/models"
)

// ConversationRepository is the authoritative, append-only store for chat
// sessions and their turns.
type ConversationRepository interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	GetOwnedSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error)

	// AppendExchange appends a user turn and its paired agent turn with
	// strictly increasing timestamps.
	AppendExchange(ctx context.Context, sessionID uuid.UUID, userText, agentText string) error

	// ListMessages returns all turns of a session in creation order.
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error)
}

type conversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO chat_sessions (id, user_id, profile_id, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, session.ID, session.UserID, session.ProfileID, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *conversationRepository) GetOwnedSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	query := `
		SELECT id, user_id, profile_id, created_at
		FROM chat_sessions
		WHERE id = $1 AND user_id = $2`

	var session models.ChatSession
	err := r.db.QueryRow(ctx, query, sessionID, userID).Scan(
		&session.ID, &session.UserID, &session.ProfileID, &session.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *conversationRepository) AppendExchange(ctx context.Context, sessionID uuid.UUID, userText, agentText string) error {
	// The agent timestamp is bumped by a microsecond so the pair stays
	// strictly ordered even within one clock reading.
	userAt := time.Now().UTC()
	agentAt := userAt.Add(time.Microsecond)

	query := `
		INSERT INTO chat_messages (session_id, sender, message, created_at)
		VALUES ($1, $2, $3, $4), ($1, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		sessionID,
		models.SenderUser, userText, userAt,
		models.SenderAgent, agentText, agentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append exchange: %w", err)
	}
	return nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, session_id, sender, message, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
