package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/config"
	"github.com/astrodarshan/astro-engine/pkg/llm"
	"github.com/astrodarshan/astro-engine/pkg/models"
	"github.com/astrodarshan/astro-engine/pkg/repositories"
)

// RefusalAnswer is the fixed reply for queries that fail input admission.
const RefusalAnswer = "Sorry, I cannot answer this type of query."

const fallbackAnswer = "Based on your planetary positions and Dasha periods as of %s, " +
	"the influences are mixed. Focus on patience, discipline, and spiritual balance. " +
	"Would you like me to analyze your Antardasha in detail for this period?"

const (
	primaryTemperature = 0.7
	strictTemperature  = 0.2
)

// ConsultationService runs the guarded consultation pipeline: admit the
// query, resolve facts, assemble context, generate, admit the answer, and
// record the exchange. Every admitted query yields exactly one answer.
type ConsultationService interface {
	// StartSession opens a new consultation session for one of the
	// caller's profiles.
	StartSession(ctx context.Context, userID, profileID uuid.UUID) (*models.ChatSession, error)

	// Ask answers a query within a session the caller owns.
	Ask(ctx context.Context, userID, sessionID uuid.UUID, query string) (string, error)

	// History returns the session's transcript in order.
	History(ctx context.Context, userID, sessionID uuid.UUID) ([]models.CachedTurn, error)
}

type consultationService struct {
	sessions    repositories.ConversationRepository
	profiles    repositories.ProfileRepository
	facts       FactService
	safety      SafetyEvaluator
	transcripts TranscriptStore
	generator   llm.Client
	cfg         config.PipelineConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewConsultationService wires the pipeline stages together.
func NewConsultationService(
	sessions repositories.ConversationRepository,
	profiles repositories.ProfileRepository,
	facts FactService,
	safety SafetyEvaluator,
	transcripts TranscriptStore,
	generator llm.Client,
	cfg config.PipelineConfig,
	logger *zap.Logger,
) ConsultationService {
	return &consultationService{
		sessions:    sessions,
		profiles:    profiles,
		facts:       facts,
		safety:      safety,
		transcripts: transcripts,
		generator:   generator,
		cfg:         cfg,
		logger:      logger.Named("consultation"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var _ ConsultationService = (*consultationService)(nil)

func (s *consultationService) StartSession(ctx context.Context, userID, profileID uuid.UUID) (*models.ChatSession, error) {
	if _, err := s.profiles.GetOwned(ctx, userID, profileID); err != nil {
		return nil, err
	}

	session := &models.ChatSession{UserID: userID, ProfileID: profileID}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *consultationService) Ask(ctx context.Context, userID, sessionID uuid.UUID, query string) (string, error) {
	session, err := s.sessions.GetOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}

	admitted, err := s.safety.AdmitQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("admit query: %w", err)
	}
	if !admitted {
		s.logger.Info("Query refused",
			zap.String("session_id", sessionID.String()))
		if s.cfg.RecordRefused {
			if recErr := s.transcripts.Append(ctx, sessionID, query, RefusalAnswer); recErr != nil {
				s.logger.Warn("Failed to record refused exchange", zap.Error(recErr))
			}
		}
		return RefusalAnswer, nil
	}

	profile, err := s.profiles.GetByID(ctx, session.ProfileID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}

	facts, err := s.facts.Resolve(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("resolve facts: %w", err)
	}

	history, err := s.transcripts.History(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	if limit := s.cfg.HistoryLimit; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	referenceDate, explicit := ExtractReferenceDate(query, s.now())
	if !explicit {
		referenceDate = s.now()
	}

	answer, err := s.generate(ctx, profile, facts, history, referenceDate, query)
	if err != nil {
		return "", err
	}

	if err := s.transcripts.Append(ctx, sessionID, query, answer); err != nil {
		return "", fmt.Errorf("record exchange: %w", err)
	}
	return answer, nil
}

// generate produces one admitted answer: a primary attempt, up to the
// configured number of strict regenerations, then the deterministic template.
func (s *consultationService) generate(
	ctx context.Context,
	profile *models.Profile,
	facts *models.AstrologicalFacts,
	history []models.CachedTurn,
	referenceDate time.Time,
	query string,
) (string, error) {
	answer, ok, err := s.attempt(ctx, profile, facts, history, referenceDate, query, VariantPrimary, primaryTemperature)
	if err != nil {
		return "", err
	}
	if ok {
		return answer, nil
	}

	for i := 0; i < s.cfg.MaxOutputRetries; i++ {
		answer, ok, err = s.attempt(ctx, profile, facts, history, referenceDate, query, VariantStrict, strictTemperature)
		if err != nil {
			return "", err
		}
		if ok {
			return answer, nil
		}
	}

	s.logger.Warn("All generation attempts failed output admission, using template",
		zap.String("profile_id", profile.ID.String()))
	return fmt.Sprintf(fallbackAnswer, referenceDate.Format("2006-01-02")), nil
}

func (s *consultationService) attempt(
	ctx context.Context,
	profile *models.Profile,
	facts *models.AstrologicalFacts,
	history []models.CachedTurn,
	referenceDate time.Time,
	query string,
	variant PromptVariant,
	temperature float64,
) (string, bool, error) {
	systemMessage, prompt := BuildPrompt(profile, facts, history, referenceDate, query, variant)

	answer, err := s.generator.GenerateResponse(ctx, prompt, systemMessage, temperature)
	if err != nil {
		return "", false, fmt.Errorf("generate answer: %w", err)
	}

	admitted, err := s.safety.AdmitAnswer(ctx, answer)
	if err != nil {
		return "", false, fmt.Errorf("admit answer: %w", err)
	}
	return answer, admitted, nil
}

func (s *consultationService) History(ctx context.Context, userID, sessionID uuid.UUID) ([]models.CachedTurn, error) {
	if _, err := s.sessions.GetOwnedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.transcripts.History(ctx, sessionID)
}
