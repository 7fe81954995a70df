package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"alfredoptarigan/cto-screener/internal/models"
)

// ErrInvalidResponse marks LLM output that is not valid JSON or fails the
// decision schema.
var ErrInvalidResponse = errors.New("invalid evaluator response")

const (
	primaryTemperature   = 0.3
	secondaryTemperature = 0.2
)

// EvaluatorService runs the first evaluation stage. It never returns an
// error: any failure yields a schema-valid REJECT.
type EvaluatorService interface {
	Evaluate(ctx context.Context, bundle CandidateBundle) *models.Decision
}

type evaluatorService struct {
	geminiService GeminiService
	retriever     CalibrationRetriever
	promptBuilder *PromptBuilder
	maxRetries    int
}

func NewEvaluatorService(
	geminiService GeminiService,
	retriever CalibrationRetriever,
	promptBuilder *PromptBuilder,
	maxRetries int,
) EvaluatorService {
	if retriever == nil {
		retriever = noopRetriever{}
	}
	return &evaluatorService{
		geminiService: geminiService,
		retriever:     retriever,
		promptBuilder: promptBuilder,
		maxRetries:    maxRetries,
	}
}

func (e *evaluatorService) Evaluate(ctx context.Context, bundle CandidateBundle) *models.Decision {
	decision, err := e.evaluate(ctx, bundle)
	if err != nil {
		log.Printf("❌ Primary evaluation failed for %s: %v\n", bundle.Profile.DisplayName(), err)
		return FailedPrimaryDecision()
	}
	return decision
}

func (e *evaluatorService) evaluate(ctx context.Context, bundle CandidateBundle) (*models.Decision, error) {
	log.Println("🔍 Retrieving calibration context...")
	calibration := e.retriever.Retrieve(ctx, profileSummary(bundle.Profile))

	system, payload, err := e.promptBuilder.BuildPrimaryPrompt(bundle, calibration)
	if err != nil {
		return nil, err
	}

	log.Printf("🤖 Evaluating %s with LLM...\n", bundle.Profile.DisplayName())
	response, err := e.geminiService.GenerateJSONWithRetry(ctx, system, payload, primaryTemperature, e.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate evaluation: %w", err)
	}

	var decision models.Decision
	if err := parseJSONResponse(response, &decision); err != nil {
		return nil, err
	}
	if err := decision.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &decision, nil
}

// FailedPrimaryDecision is the fail-closed result of the first stage.
func FailedPrimaryDecision() *models.Decision {
	return &models.Decision{
		Outcome:                 models.MustReject("System error during evaluation"),
		OverallScore:            0,
		Confidence:              0,
		Reasoning:               "AI Evaluation Failed - system error during processing",
		Strengths:               []string{"Unable to evaluate"},
		Concerns:                []string{"System error during evaluation"},
		RedFlags:                []string{"Evaluation failed"},
		InterviewRecommendation: models.RecommendationNotRecommended,
	}
}

// profileSummary is the text embedded to find similar calibration examples.
func profileSummary(p *models.LinkedInProfile) string {
	var sb strings.Builder
	sb.WriteString(p.Headline)
	for _, exp := range p.Experiences {
		fmt.Fprintf(&sb, "\n%s at %s. %s", exp.Title, exp.CompanyName, exp.JobDescription)
	}
	if p.About != "" {
		sb.WriteString("\n")
		sb.WriteString(p.About)
	}
	return sb.String()
}

func parseJSONResponse(response string, target interface{}) error {
	// LLM might wrap it in markdown
	jsonStr := extractJSON(response)

	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// extractJSON strips markdown fences and anything outside the outermost
// JSON object or array.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")

	if startObj != -1 && endObj != -1 && endObj > startObj {
		return text[startObj : endObj+1]
	} else if startArr != -1 && endArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}

	return strings.TrimSpace(text)
}
