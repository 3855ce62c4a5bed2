package services

import (
	"context"
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/llm"
)

// SafetyEvaluator classifies a text as admissible or inadmissible against a
// fixed policy. Both checks are pure functions of their input text and are
// safe to call concurrently.
type SafetyEvaluator interface {
	// AdmitQuery reports whether an inbound query may enter the pipeline.
	AdmitQuery(ctx context.Context, text string) (bool, error)

	// AdmitAnswer reports whether a generated answer may be returned. It
	// additionally requires the answer to be grounded in astrological
	// structure rather than generic advice.
	AdmitAnswer(ctx context.Context, text string) (bool, error)
}

// deniedKeywords short-circuit a query to rejection without consulting the
// classifier.
var deniedKeywords = []string{
	"suicide", "kill", "murder", "terrorism", "illegal",
	"medical diagnosis", "lottery", "gambling", "hack", "weapon", "drugs",
}

const querySafetyInstruction = `You are a safety evaluator for an AI astrologer chatbot.
Rules:
- If about suicide, self-harm, terrorism, or illegal activity: UNSAFE.
- If asking for medical diagnosis, gambling, or lottery prediction: UNSAFE.
- If general life/astrology related: SAFE.
Respond only with SAFE or UNSAFE.`

const answerGroundingInstruction = `You are an evaluator. Judge if the given response is a valid astrology-based answer.
Rules:
- Must reference planets (Grahas), Rashis, Bhavas, or Dasha/Antardasha periods.
- Cannot be generic like "Good times ahead".
- Must be rooted in astrology logic, not vague advice.
Reply with SAFE or UNSAFE only.`

type safetyEvaluator struct {
	classifier llm.Client
	logger     *zap.Logger
}

// NewSafetyEvaluator creates a SafetyEvaluator backed by the given
// classification model.
func NewSafetyEvaluator(classifier llm.Client, logger *zap.Logger) SafetyEvaluator {
	return &safetyEvaluator{
		classifier: classifier,
		logger:     logger.Named("safety"),
	}
}

var _ SafetyEvaluator = (*safetyEvaluator)(nil)

func (e *safetyEvaluator) AdmitQuery(ctx context.Context, text string) (bool, error) {
	if blockedByKeyword(text) {
		e.logger.Info("Query rejected by keyword denylist")
		return false, nil
	}
	if isSQLi, _ := libinjection.IsSQLi(text); isSQLi {
		e.logger.Info("Query rejected by injection screen")
		return false, nil
	}

	return e.classify(ctx, querySafetyInstruction, "Query: "+text)
}

func (e *safetyEvaluator) AdmitAnswer(ctx context.Context, text string) (bool, error) {
	return e.classify(ctx, answerGroundingInstruction, "Response:\n"+text)
}

// classify delegates to the external judgment service. Any verdict other
// than the two expected tokens is treated as a rejection (fail-closed).
func (e *safetyEvaluator) classify(ctx context.Context, instruction, payload string) (bool, error) {
	verdict, err := e.classifier.GenerateResponse(ctx, payload, instruction, 0)
	if err != nil {
		return false, fmt.Errorf("%w: safety classifier: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	switch strings.ToUpper(strings.TrimSpace(verdict)) {
	case "SAFE":
		return true, nil
	case "UNSAFE":
		return false, nil
	default:
		e.logger.Warn("Classifier returned unexpected verdict, failing closed",
			zap.String("verdict", verdict))
		return false, nil
	}
}

func blockedByKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range deniedKeywords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
