package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

var (
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrSessionNotFound   = errors.New("session not found")
	// ErrCandidateClaimed means another run is processing the candidate or
	// it already has a terminal result.
	ErrCandidateClaimed  = errors.New("candidate is already being processed")
	ErrInvalidCorrection = errors.New("invalid correction")
)

// ProcessResult reports one orchestrator run. A failed run is recorded, not
// returned as an error.
type ProcessResult struct {
	CandidateID uuid.UUID      `json:"candidate_id"`
	Success     bool           `json:"success"`
	Decision    models.Verdict `json:"decision,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type ScreeningService interface {
	ProcessCandidate(ctx context.Context, candidateID, sessionID uuid.UUID) (*ProcessResult, error)
	RetryCandidate(ctx context.Context, candidateID uuid.UUID) (*ProcessResult, error)
	DeleteCandidate(ctx context.Context, candidateID uuid.UUID) error
	ApplyCorrection(ctx context.Context, req models.CorrectionRequest) (*models.CandidateEvaluation, error)
	ListCorrections(ctx context.Context, filter models.CorrectionFilter) (*models.CorrectionSummary, error)
	ReconcileCounters(ctx context.Context, sessionID uuid.UUID) (*models.SessionCounters, error)
}

type screeningService struct {
	candidates repositories.CandidateRepository
	sessions   repositories.SessionRepository
	enrichment EnrichmentService
	evaluator  EvaluatorService
	escalation EscalationService
	now        func() time.Time
}

func NewScreeningService(
	candidates repositories.CandidateRepository,
	sessions repositories.SessionRepository,
	enrichment EnrichmentService,
	evaluator EvaluatorService,
	escalation EscalationService,
) ScreeningService {
	return &screeningService{
		candidates: candidates,
		sessions:   sessions,
		enrichment: enrichment,
		evaluator:  evaluator,
		escalation: escalation,
		now:        time.Now,
	}
}

// pipelineError carries the stack of the failure for the session error log.
type pipelineError struct {
	err   error
	stack string
}

func (e *pipelineError) Error() string { return e.err.Error() }
func (e *pipelineError) Unwrap() error { return e.err }

func (s *screeningService) ProcessCandidate(ctx context.Context, candidateID, sessionID uuid.UUID) (*ProcessResult, error) {
	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
		}
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if candidate.ScreeningSessionID != sessionID {
		return nil, fmt.Errorf("%w: %s in session %s", ErrCandidateNotFound, candidateID, sessionID)
	}

	if err := s.candidates.Claim(ctx, candidateID); err != nil {
		if errors.Is(err, repositories.ErrNotClaimable) {
			return nil, ErrCandidateClaimed
		}
		return nil, fmt.Errorf("failed to claim candidate: %w", err)
	}

	log.Printf("🔄 Processing candidate %s (%s)\n", candidate.FullName, candidateID)

	outcome, err := s.runPipeline(ctx, candidate)
	if err != nil {
		s.recordFailure(ctx, candidateID, err)
		return &ProcessResult{CandidateID: candidateID, Success: false, Error: err.Error()}, nil
	}

	log.Printf("✅ Candidate %s evaluated: %s\n", candidate.FullName, outcome.Result())
	return &ProcessResult{CandidateID: candidateID, Success: true, Decision: outcome.Decision.Verdict()}, nil
}

// runPipeline runs every stage after the claim. Panics become errors so a
// single candidate cannot take down its batch.
func (s *screeningService) runPipeline(ctx context.Context, candidate *models.CandidateEvaluation) (outcome *models.EvaluationOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = &pipelineError{err: fmt.Errorf("panic: %v", r), stack: string(debug.Stack())}
		}
	}()

	start := s.now()

	session, err := s.sessions.FindByID(ctx, candidate.ScreeningSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	config := session.ScreeningConfig()

	profile, err := candidate.Profile()
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	log.Println("📋 Checking language proficiency...")
	language := CheckLanguages(profile, config.TargetCountry)

	companies := []models.EnrichedCompany{}
	if config.EnableCompanyEnrichment && s.enrichment != nil {
		log.Println("🔍 Enriching companies...")
		companies = s.enrichment.EnrichProfile(ctx, profile)
	}

	bundle := CandidateBundle{
		Profile:   profile,
		Language:  language,
		Companies: companies,
		Config:    config,
	}

	decision := s.evaluator.Evaluate(ctx, bundle)

	var secondary *models.SecondaryEvaluation
	if decision.Verdict() == models.VerdictReview {
		secondary = s.escalation.Escalate(ctx, bundle, decision)
		decision = decision.MergeSecondary(secondary)
	}

	outcome = &models.EvaluationOutcome{
		LanguageCheck:     language,
		EnrichedCompanies: companies,
		Decision:          decision,
		Secondary:         secondary,
		ProcessingTime:    s.now().Sub(start),
	}

	log.Println("💾 Saving evaluation results...")
	if err := s.candidates.CompleteEvaluation(ctx, candidate.ID, outcome); err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}
	return outcome, nil
}

func (s *screeningService) recordFailure(ctx context.Context, candidateID uuid.UUID, err error) {
	var stack string
	var pe *pipelineError
	if errors.As(err, &pe) {
		stack = pe.stack
	} else {
		stack = string(debug.Stack())
	}

	log.Printf("❌ Candidate %s failed: %v\n", candidateID, err)
	if markErr := s.candidates.MarkErrored(context.WithoutCancel(ctx), candidateID, err.Error(), stack); markErr != nil {
		log.Printf("❌ Failed to record error for candidate %s: %v\n", candidateID, markErr)
	}
}

// RetryCandidate resets the candidate, moving the counters out of its prior
// bucket, and runs it again.
func (s *screeningService) RetryCandidate(ctx context.Context, candidateID uuid.UUID) (*ProcessResult, error) {
	prior, err := s.candidates.ResetForRetry(ctx, candidateID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
		case errors.Is(err, repositories.ErrNotClaimable):
			return nil, ErrCandidateClaimed
		}
		return nil, fmt.Errorf("failed to reset candidate: %w", err)
	}
	log.Printf("🔄 Retrying candidate %s (was %s)\n", candidateID, prior)

	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload candidate: %w", err)
	}
	return s.ProcessCandidate(ctx, candidateID, candidate.ScreeningSessionID)
}

func (s *screeningService) DeleteCandidate(ctx context.Context, candidateID uuid.UUID) error {
	if err := s.candidates.Delete(ctx, candidateID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
		}
		return err
	}
	return nil
}

func (s *screeningService) ApplyCorrection(ctx context.Context, req models.CorrectionRequest) (*models.CandidateEvaluation, error) {
	candidateID, err := uuid.Parse(req.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate_id must be a UUID", ErrInvalidCorrection)
	}
	if req.NewDecision != models.DecisionPass && req.NewDecision != models.DecisionReject {
		return nil, fmt.Errorf("%w: new_decision must be PASS or REJECT", ErrInvalidCorrection)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidCorrection)
	}

	override := models.ManualOverride{
		NewDecision: req.NewDecision,
		Reason:      strings.TrimSpace(req.Reason),
		CorrectedBy: req.CorrectedBy,
		CorrectedAt: s.now(),
	}
	if err := s.candidates.ApplyOverride(ctx, candidateID, override); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, candidateID)
		case errors.Is(err, repositories.ErrNotClaimable):
			return nil, fmt.Errorf("%w: candidate has not been evaluated yet", ErrInvalidCorrection)
		}
		return nil, err
	}

	log.Printf("✅ Candidate %s corrected to %s by %s\n", candidateID, req.NewDecision, req.CorrectedBy)
	return s.candidates.FindByID(ctx, candidateID)
}

func (s *screeningService) ListCorrections(ctx context.Context, filter models.CorrectionFilter) (*models.CorrectionSummary, error) {
	candidates, err := s.candidates.ListOverrides(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &models.CorrectionSummary{
		ByNewDecision: make(map[string]int),
		Corrections:   make([]models.CorrectionEntry, 0, len(candidates)),
	}
	for i := range candidates {
		c := &candidates[i]
		override, err := c.Override()
		if err != nil || override == nil {
			log.Printf("⚠️  Skipping unreadable override on candidate %s: %v\n", c.ID, err)
			continue
		}
		summary.ByNewDecision[string(override.NewDecision)]++
		summary.Corrections = append(summary.Corrections, models.CorrectionEntry{
			CandidateID:        c.ID.String(),
			ScreeningSessionID: c.ScreeningSessionID.String(),
			FullName:           c.FullName,
			LinkedinURL:        c.LinkedinURL,
			CurrentTitle:       c.CurrentTitle,
			CurrentCompany:     c.CurrentCompany,
			Override:           override,
			Profile:            json.RawMessage(c.ProfileData),
		})
	}
	summary.Total = len(summary.Corrections)
	return summary, nil
}

// ReconcileCounters recomputes a session's counters from its candidates.
func (s *screeningService) ReconcileCounters(ctx context.Context, sessionID uuid.UUID) (*models.SessionCounters, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	byResult, err := s.candidates.CountByDecision(ctx, models.CandidateFilter{SessionID: &sessionID})
	if err != nil {
		return nil, err
	}
	counters := models.CountersFrom(byResult)
	if err := s.sessions.SetCounters(ctx, sessionID, counters); err != nil {
		return nil, err
	}

	log.Printf("✅ Reconciled counters for session %s: %+v\n", sessionID, counters)
	return &counters, nil
}
