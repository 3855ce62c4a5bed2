package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/models"
	"github.com/astrodarshan/astro-engine/pkg/repositories"
)

// TranscriptStore records consultation exchanges durably and mirrors them
// into a recency cache for fast history reads. The durable log is
// authoritative; the cache is a best-effort projection.
type TranscriptStore interface {
	// Append persists a user/agent exchange. The durable write must
	// succeed; the cache mirror is best-effort and never fails the call.
	Append(ctx context.Context, sessionID uuid.UUID, userText, agentText string) error

	// History returns a session's turns in order, most recent last. It
	// prefers the cache and falls back to the durable log on a miss.
	History(ctx context.Context, sessionID uuid.UUID) ([]models.CachedTurn, error)
}

type transcriptStore struct {
	repo   repositories.ConversationRepository
	cache  database.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewTranscriptStore creates a TranscriptStore with the given cache
// retention window.
func NewTranscriptStore(
	repo repositories.ConversationRepository,
	cache database.Cache,
	ttl time.Duration,
	logger *zap.Logger,
) TranscriptStore {
	return &transcriptStore{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("transcript"),
	}
}

var _ TranscriptStore = (*transcriptStore)(nil)

func (s *transcriptStore) Append(ctx context.Context, sessionID uuid.UUID, userText, agentText string) error {
	if err := s.repo.AppendExchange(ctx, sessionID, userText, agentText); err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}

	s.mirror(ctx, sessionID, userText, agentText)
	return nil
}

// mirror pushes the exchange onto the session's cache list. Failures are
// logged and swallowed; the durable write already succeeded.
func (s *transcriptStore) mirror(ctx context.Context, sessionID uuid.UUID, userText, agentText string) {
	userTurn, err := json.Marshal(models.CachedTurn{Role: models.SenderUser, Content: userText})
	if err != nil {
		s.logger.Warn("Transcript cache encode failed", zap.Error(err))
		return
	}
	agentTurn, err := json.Marshal(models.CachedTurn{Role: models.SenderAgent, Content: agentText})
	if err != nil {
		s.logger.Warn("Transcript cache encode failed", zap.Error(err))
		return
	}

	key := database.TranscriptKey(sessionID)
	if err := s.cache.PushRight(ctx, key, string(userTurn), string(agentTurn)); err != nil {
		s.logger.Warn("Transcript cache push failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return
	}
	if err := s.cache.Expire(ctx, key, s.ttl); err != nil {
		s.logger.Warn("Transcript cache expire failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}
}

func (s *transcriptStore) History(ctx context.Context, sessionID uuid.UUID) ([]models.CachedTurn, error) {
	key := database.TranscriptKey(sessionID)

	entries, err := s.cache.Range(ctx, key, 0, -1)
	if err != nil {
		s.logger.Warn("Transcript cache read failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	} else if len(entries) > 0 {
		turns := make([]models.CachedTurn, 0, len(entries))
		decodable := true
		for _, entry := range entries {
			var turn models.CachedTurn
			if err := json.Unmarshal([]byte(entry), &turn); err != nil {
				s.logger.Warn("Discarding undecodable transcript cache entry",
					zap.String("session_id", sessionID.String()))
				decodable = false
				break
			}
			turns = append(turns, turn)
		}
		if decodable {
			return turns, nil
		}
	}

	// An expired or corrupt cache degrades to the durable log.
	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	turns := make([]models.CachedTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, models.CachedTurn{Role: m.Sender, Content: m.Message})
	}
	return turns, nil
}
