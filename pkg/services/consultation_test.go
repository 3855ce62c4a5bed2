package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/config"
	"github.com/astrodarshan/astro-engine/pkg/llm"
	"github.com/astrodarshan/astro-engine/pkg/models"
)

// mockSafety is a function-field stand-in for the safety evaluator.
type mockSafety struct {
	admitQueryFunc  func(ctx context.Context, text string) (bool, error)
	admitAnswerFunc func(ctx context.Context, text string) (bool, error)

	admitQueryCalls  int
	admitAnswerCalls int
}

var _ SafetyEvaluator = (*mockSafety)(nil)

func (m *mockSafety) AdmitQuery(ctx context.Context, text string) (bool, error) {
	m.admitQueryCalls++
	if m.admitQueryFunc != nil {
		return m.admitQueryFunc(ctx, text)
	}
	return true, nil
}

func (m *mockSafety) AdmitAnswer(ctx context.Context, text string) (bool, error) {
	m.admitAnswerCalls++
	if m.admitAnswerFunc != nil {
		return m.admitAnswerFunc(ctx, text)
	}
	return true, nil
}

// pipelineFixture wires a consultation service over in-memory collaborators
// with one user, one profile, and one open session.
type pipelineFixture struct {
	svc       *consultationService
	convRepo  *fakeConversationRepo
	cache     *fakeCache
	safety    *mockSafety
	generator *llm.MockClient
	userID    uuid.UUID
	sessionID uuid.UUID
}

func newPipelineFixture(t *testing.T, cfg config.PipelineConfig) *pipelineFixture {
	t.Helper()

	profile := testProfile()
	profileRepo := &fakeProfileRepo{profile: profile}
	convRepo := newFakeConversationRepo()
	cache := newFakeCache()
	safety := &mockSafety{}
	generator := llm.NewMockClient()
	generator.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "Jupiter in the 10th house favours your career.", nil
	}

	logger := zap.NewNop()
	facts := NewFactService(cache, fullEphemeris(), profileRepo, cfg.FactsTTL, logger)
	transcripts := NewTranscriptStore(convRepo, cache, cfg.TranscriptTTL, logger)
	svc := NewConsultationService(convRepo, profileRepo, facts, safety, transcripts, generator, cfg, logger).(*consultationService)

	session := &models.ChatSession{UserID: profile.UserID, ProfileID: profile.ID}
	require.NoError(t, convRepo.CreateSession(context.Background(), session))

	return &pipelineFixture{
		svc:       svc,
		convRepo:  convRepo,
		cache:     cache,
		safety:    safety,
		generator: generator,
		userID:    profile.UserID,
		sessionID: session.ID,
	}
}

func defaultPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		FactsTTL:         6 * time.Hour,
		TranscriptTTL:    168 * time.Hour,
		MaxOutputRetries: 1,
		HistoryLimit:     50,
	}
}

func TestConsultation_Ask_HappyPath(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())

	answer, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "How is my career looking?")

	require.NoError(t, err)
	assert.Equal(t, "Jupiter in the 10th house favours your career.", answer)
	assert.Equal(t, 1, f.generator.GenerateResponseCalls)
	assert.Equal(t, 1, f.safety.admitQueryCalls)
	assert.Equal(t, 1, f.safety.admitAnswerCalls)

	messages, err := f.convRepo.ListMessages(context.Background(), f.sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "How is my career looking?", messages[0].Message)
	assert.Equal(t, answer, messages[1].Message)
}

func TestConsultation_Ask_RefusedQueryIsNotRecorded(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	f.safety.admitQueryFunc = func(ctx context.Context, text string) (bool, error) {
		return false, nil
	}

	answer, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "how to hack a bank")

	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, answer)
	assert.Equal(t, 0, f.generator.GenerateResponseCalls)

	messages, err := f.convRepo.ListMessages(context.Background(), f.sessionID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestConsultation_Ask_RecordRefusedFlag(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.RecordRefused = true
	f := newPipelineFixture(t, cfg)
	f.safety.admitQueryFunc = func(ctx context.Context, text string) (bool, error) {
		return false, nil
	}

	answer, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "bad query")

	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, answer)
	messages, err := f.convRepo.ListMessages(context.Background(), f.sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RefusalAnswer, messages[1].Message)
}

func TestConsultation_Ask_StrictRetryAfterRejectedAnswer(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	var systemMessages []string
	f.generator.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		systemMessages = append(systemMessages, systemMessage)
		if len(systemMessages) == 1 {
			return "vague generic advice", nil
		}
		return "Saturn Antardasha until March delays results.", nil
	}
	f.safety.admitAnswerFunc = func(ctx context.Context, text string) (bool, error) {
		return strings.Contains(text, "Antardasha"), nil
	}

	answer, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "When will I get promoted?")

	require.NoError(t, err)
	assert.Equal(t, "Saturn Antardasha until March delays results.", answer)
	require.Len(t, systemMessages, 2)
	assert.NotContains(t, systemMessages[0], "strict Vedic astrologer")
	assert.Contains(t, systemMessages[1], "strict Vedic astrologer")
	assert.Equal(t, 2, f.safety.admitAnswerCalls)
}

func TestConsultation_Ask_TemplateFallbackWhenAllRejected(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	f.svc.now = func() time.Time { return date(2025, time.January, 1) }
	f.safety.admitAnswerFunc = func(ctx context.Context, text string) (bool, error) {
		return false, nil
	}

	answer, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "What does the next 2 weeks hold?")

	require.NoError(t, err)
	// Primary plus one strict regeneration, then the deterministic template
	// anchored to the extracted reference date.
	assert.Equal(t, 2, f.generator.GenerateResponseCalls)
	assert.Contains(t, answer, "2025-01-15")
	assert.Contains(t, answer, "patience, discipline, and spiritual balance")

	messages, err := f.convRepo.ListMessages(context.Background(), f.sessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, answer, messages[1].Message)
}

func TestConsultation_Ask_DefaultsReferenceDateToToday(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	f.svc.now = func() time.Time { return date(2025, time.June, 10) }
	f.safety.admitAnswerFunc = func(ctx context.Context, text string) (bool, error) {
		return false, nil
	}

	answer, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "Tell me about my career.")

	require.NoError(t, err)
	assert.Contains(t, answer, "2025-06-10")
}

func TestConsultation_Ask_GeneratorErrorPropagates(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	f.generator.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "", errors.New("model overloaded")
	}

	_, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "Any query")

	require.Error(t, err)
	messages, listErr := f.convRepo.ListMessages(context.Background(), f.sessionID)
	require.NoError(t, listErr)
	assert.Empty(t, messages)
}

func TestConsultation_Ask_SafetyErrorPropagates(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	f.safety.admitQueryFunc = func(ctx context.Context, text string) (bool, error) {
		return false, apperrors.ErrUpstreamUnavailable
	}

	_, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "Any query")

	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.Equal(t, 0, f.generator.GenerateResponseCalls)
}

func TestConsultation_Ask_UnownedSession(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())

	_, err := f.svc.Ask(context.Background(), uuid.New(), f.sessionID, "Any query")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConsultation_Ask_HistoryLimitBoundsPrompt(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.HistoryLimit = 2
	f := newPipelineFixture(t, cfg)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.convRepo.AppendExchange(context.Background(), f.sessionID, "earlier question", "earlier answer"))
	}

	var gotPrompt string
	f.generator.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		gotPrompt = prompt
		return "Moon favours reflection.", nil
	}

	_, err := f.svc.Ask(context.Background(), f.userID, f.sessionID, "And now?")

	require.NoError(t, err)
	// Three exchanges (six turns) exist, but only the last two turns fit.
	assert.Equal(t, 2, strings.Count(gotPrompt, "earlier"))
}

func TestConsultation_StartSession(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	profile, err := f.svc.profiles.ListByUser(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, profile, 1)

	session, err := f.svc.StartSession(context.Background(), f.userID, profile[0].ID)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, f.userID, session.UserID)
}

func TestConsultation_StartSession_UnownedProfile(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())

	_, err := f.svc.StartSession(context.Background(), uuid.New(), uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConsultation_History_ChecksOwnership(t *testing.T) {
	f := newPipelineFixture(t, defaultPipelineConfig())
	require.NoError(t, f.convRepo.AppendExchange(context.Background(), f.sessionID, "q", "a"))

	turns, err := f.svc.History(context.Background(), f.userID, f.sessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	_, err = f.svc.History(context.Background(), uuid.New(), f.sessionID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
