package services

import (
	"context"
	"fmt"
	"log"

	"alfredoptarigan/cto-screener/internal/models"
)

// EscalationService resolves a REVIEW into PASS or REJECT. Like the primary
// stage it fails closed.
type EscalationService interface {
	Escalate(ctx context.Context, bundle CandidateBundle, initial *models.Decision) *models.SecondaryEvaluation
}

type escalationService struct {
	geminiService GeminiService
	promptBuilder *PromptBuilder
	maxRetries    int
}

func NewEscalationService(geminiService GeminiService, promptBuilder *PromptBuilder, maxRetries int) EscalationService {
	return &escalationService{
		geminiService: geminiService,
		promptBuilder: promptBuilder,
		maxRetries:    maxRetries,
	}
}

func (s *escalationService) Escalate(ctx context.Context, bundle CandidateBundle, initial *models.Decision) *models.SecondaryEvaluation {
	result, err := s.escalate(ctx, bundle, initial)
	if err != nil {
		log.Printf("❌ Secondary evaluation failed for %s: %v\n", bundle.Profile.DisplayName(), err)
		return FailedSecondaryEvaluation()
	}
	return result
}

func (s *escalationService) escalate(ctx context.Context, bundle CandidateBundle, initial *models.Decision) (*models.SecondaryEvaluation, error) {
	system, payload, err := s.promptBuilder.BuildSecondaryPrompt(bundle, initial)
	if err != nil {
		return nil, err
	}

	log.Printf("🔄 Escalating %s (REVIEW, score %.0f)\n", bundle.Profile.DisplayName(), initial.OverallScore)
	response, err := s.geminiService.GenerateJSONWithRetry(ctx, system, payload, secondaryTemperature, s.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secondary evaluation: %w", err)
	}

	var result models.SecondaryEvaluation
	if err := parseJSONResponse(response, &result); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// FailedSecondaryEvaluation rejects when the escalation itself fails.
func FailedSecondaryEvaluation() *models.SecondaryEvaluation {
	return &models.SecondaryEvaluation{
		Outcome:                      models.MustReject("Secondary evaluation failed"),
		Reasoning:                    "Secondary evaluation failed due to system error. Defaulting to reject for safety.",
		KeyFindings:                  []string{"System error during evaluation"},
		BuilderDNAEvidence:           "Unable to assess",
		InnovationCurrencyAssessment: "Unable to assess",
		OverqualificationAssessment:  "Unable to assess",
		PatternMatch:                 "None",
		UpdatedScore:                 0,
		Confidence:                   0,
	}
}
