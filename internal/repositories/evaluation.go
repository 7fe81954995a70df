package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/cto-screener/internal/models"
)

type CandidateRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CandidateEvaluation, error)
	FindPending(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.CandidateEvaluation, error)
	CountUnfinished(ctx context.Context, sessionID uuid.UUID) (int64, error)
	CountByDecision(ctx context.Context, filter models.CandidateFilter) (map[models.DecisionResult]int, error)
	List(ctx context.Context, filter models.CandidateFilter) ([]models.CandidateEvaluation, int64, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CandidateEvaluation, error)

	Claim(ctx context.Context, id uuid.UUID) error
	CompleteEvaluation(ctx context.Context, id uuid.UUID, outcome *models.EvaluationOutcome) error
	MarkErrored(ctx context.Context, id uuid.UUID, message, stack string) error
	ResetForRetry(ctx context.Context, id uuid.UUID) (models.DecisionResult, error)
	ApplyOverride(ctx context.Context, id uuid.UUID, override models.ManualOverride) error
	ListOverrides(ctx context.Context, filter models.CorrectionFilter) ([]models.CandidateEvaluation, error)
	Delete(ctx context.Context, id uuid.UUID) error

	FindWithoutCountry(ctx context.Context) ([]models.CandidateEvaluation, error)
	CountWithoutCountry(ctx context.Context) (int64, error)
	UpdateCountry(ctx context.Context, id uuid.UUID, countryID uuid.UUID) error
}

type candidateRepository struct {
	db    *gorm.DB
	lease time.Duration
}

// NewCandidateRepository builds the repository. A claim older than lease is
// considered abandoned and may be taken over.
func NewCandidateRepository(db *gorm.DB, lease time.Duration) CandidateRepository {
	return &candidateRepository{db: db, lease: lease}
}

func (r *candidateRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.CandidateEvaluation, error) {
	var candidate models.CandidateEvaluation
	if err := r.db.WithContext(ctx).Preload("Country").Where("id = ?", id).First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return &candidate, nil
}

// claimable matches PENDING rows and IN_PROGRESS rows whose claim expired.
func (r *candidateRepository) claimable(db *gorm.DB) *gorm.DB {
	return db.Where(
		"(decision_result = ? OR (decision_result = ? AND (claimed_at IS NULL OR claimed_at < ?)))",
		models.DecisionPending, models.DecisionInProgress, time.Now().Add(-r.lease),
	)
}

func (r *candidateRepository) FindPending(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.CandidateEvaluation, error) {
	var candidates []models.CandidateEvaluation
	q := r.db.WithContext(ctx).Where("screening_session_id = ?", sessionID)
	if err := r.claimable(q).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to find pending candidates: %w", err)
	}
	return candidates, nil
}

// CountUnfinished counts PENDING and IN_PROGRESS candidates.
func (r *candidateRepository) CountUnfinished(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CandidateEvaluation{}).
		Where("screening_session_id = ? AND decision_result IN ?", sessionID,
			[]models.DecisionResult{models.DecisionPending, models.DecisionInProgress}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unfinished candidates: %w", err)
	}
	return count, nil
}

// CountByDecision groups the candidates matching the filter by result.
// Search, date and paging fields are ignored except where they narrow rows.
func (r *candidateRepository) CountByDecision(ctx context.Context, f models.CandidateFilter) (map[models.DecisionResult]int, error) {
	var rows []struct {
		DecisionResult models.DecisionResult
		Count          int
	}
	if err := r.db.WithContext(ctx).Model(&models.CandidateEvaluation{}).
		Scopes(candidateScope(f)).
		Select("decision_result, COUNT(*) AS count").
		Group("decision_result").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count candidates by decision: %w", err)
	}

	counts := make(map[models.DecisionResult]int, len(rows))
	for _, row := range rows {
		counts[row.DecisionResult] = row.Count
	}
	return counts, nil
}

func candidateScope(f models.CandidateFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.SessionID != nil {
			q = q.Where("screening_session_id = ?", *f.SessionID)
		}
		if f.CountryID != nil {
			q = q.Where("country_id = ?", *f.CountryID)
		}
		if f.Decision != "" && f.Decision != "ALL" {
			q = q.Where("decision_result = ?", f.Decision)
		}
		if f.Search != "" {
			like := "%" + f.Search + "%"
			q = q.Where("(full_name ILIKE ? OR current_title ILIKE ? OR current_company ILIKE ?)", like, like, like)
		}
		if f.DateFrom != nil {
			q = q.Where("evaluated_at >= ?", *f.DateFrom)
		}
		if f.DateTo != nil {
			// inclusive of the whole end day
			q = q.Where("evaluated_at < ?", f.DateTo.AddDate(0, 0, 1))
		}
		return q
	}
}

func (r *candidateRepository) List(ctx context.Context, f models.CandidateFilter) ([]models.CandidateEvaluation, int64, error) {
	filter := candidateScope(f)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.CandidateEvaluation{}).
		Scopes(filter).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count candidates: %w", err)
	}

	q := r.db.WithContext(ctx).Scopes(filter).
		Preload("Country").
		Order("overall_score DESC NULLS LAST").
		Order("evaluated_at DESC")
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}

	var candidates []models.CandidateEvaluation
	if err := q.Find(&candidates).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list candidates: %w", err)
	}
	return candidates, total, nil
}

func (r *candidateRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CandidateEvaluation, error) {
	candidates, _, err := r.List(ctx, models.CandidateFilter{SessionID: &sessionID})
	return candidates, err
}

// Claim atomically moves a candidate to IN_PROGRESS. Only one concurrent
// caller can win; the rest get ErrNotClaimable.
func (r *candidateRepository) Claim(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	q := r.db.WithContext(ctx).Model(&models.CandidateEvaluation{}).Where("id = ?", id)
	result := r.claimable(q).Updates(map[string]interface{}{
		"decision_result": models.DecisionInProgress,
		"claimed_at":      now,
		"updated_at":      now,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to claim candidate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotClaimable
	}
	return nil
}

// CompleteEvaluation writes the run's results and moves the session counters
// in the same transaction.
func (r *candidateRepository) CompleteEvaluation(ctx context.Context, id uuid.UUID, outcome *models.EvaluationOutcome) error {
	languageCheck, err := json.Marshal(outcome.LanguageCheck)
	if err != nil {
		return fmt.Errorf("failed to encode language check: %w", err)
	}
	companies, err := json.Marshal(outcome.EnrichedCompanies)
	if err != nil {
		return fmt.Errorf("failed to encode enriched companies: %w", err)
	}
	decision, err := json.Marshal(outcome.Decision)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}

	result := outcome.Result()
	score := outcome.Decision.OverallScore
	elapsed := outcome.ProcessingTime.Milliseconds()
	now := time.Now()

	updates := map[string]interface{}{
		"decision_result":      result,
		"overall_score":        score,
		"language_check":       datatypes.JSON(languageCheck),
		"enriched_companies":   datatypes.JSON(companies),
		"final_decision":       datatypes.JSON(decision),
		"secondary_evaluation": nil,
		"short_reject_reason":  nil,
		"processing_time_ms":   elapsed,
		"evaluated_at":         now,
		"claimed_at":           nil,
		"updated_at":           now,
	}
	if reason := outcome.Decision.ShortRejectReason(); reason != "" {
		updates["short_reject_reason"] = reason
	}
	if outcome.Secondary != nil {
		secondary, err := json.Marshal(outcome.Secondary)
		if err != nil {
			return fmt.Errorf("failed to encode secondary evaluation: %w", err)
		}
		updates["secondary_evaluation"] = datatypes.JSON(secondary)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := lockCandidate(tx, id)
		if err != nil {
			return err
		}
		if candidate.DecisionResult != models.DecisionInProgress {
			return ErrNotClaimable
		}
		if err := tx.Model(&models.CandidateEvaluation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}
		return applyCounterDelta(tx, candidate.ScreeningSessionID, models.Transition(candidate.DecisionResult, result))
	})
}

// MarkErrored records the failure for operators and, if the candidate is
// still unfinished, moves it to ERRORED so the batch can terminate.
func (r *candidateRepository) MarkErrored(ctx context.Context, id uuid.UUID, message, stack string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := lockCandidate(tx, id)
		if err != nil {
			return err
		}

		entry := models.SessionError{
			ScreeningSessionID: candidate.ScreeningSessionID,
			CandidateID:        candidate.ID,
			ErrorMessage:       message,
			ErrorStack:         stack,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record session error: %w", err)
		}

		if !candidate.DecisionResult.Unfinished() {
			return nil
		}
		if err := tx.Model(&models.CandidateEvaluation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"decision_result": models.DecisionErrored,
			"claimed_at":      nil,
			"updated_at":      time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("failed to mark candidate errored: %w", err)
		}
		return applyCounterDelta(tx, candidate.ScreeningSessionID,
			models.Transition(candidate.DecisionResult, models.DecisionErrored))
	})
}

// ResetForRetry clears every evaluation-derived field, returns the candidate
// to PENDING and removes it from whichever counter bucket it occupied. The
// prior result is returned.
func (r *candidateRepository) ResetForRetry(ctx context.Context, id uuid.UUID) (models.DecisionResult, error) {
	var prior models.DecisionResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := lockCandidate(tx, id)
		if err != nil {
			return err
		}
		prior = candidate.DecisionResult

		if prior == models.DecisionInProgress && candidate.ClaimedAt != nil &&
			candidate.ClaimedAt.After(time.Now().Add(-r.lease)) {
			return ErrNotClaimable
		}

		if err := tx.Model(&models.CandidateEvaluation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"decision_result":      models.DecisionPending,
			"overall_score":        nil,
			"language_check":       nil,
			"enriched_companies":   nil,
			"final_decision":       nil,
			"secondary_evaluation": nil,
			"short_reject_reason":  nil,
			"processing_time_ms":   nil,
			"evaluated_at":         nil,
			"claimed_at":           nil,
			"updated_at":           time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("failed to reset candidate: %w", err)
		}
		return applyCounterDelta(tx, candidate.ScreeningSessionID,
			models.Transition(prior, models.DecisionPending))
	})
	if err != nil {
		return "", err
	}
	return prior, nil
}

// ApplyOverride stores a manual correction and moves the candidate between
// counter buckets.
func (r *candidateRepository) ApplyOverride(ctx context.Context, id uuid.UUID, override models.ManualOverride) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := lockCandidate(tx, id)
		if err != nil {
			return err
		}
		if candidate.DecisionResult.Unfinished() {
			return ErrNotClaimable
		}

		override.OriginalDecision = candidate.DecisionResult
		override.Snapshot = models.OverrideSnapshot{
			OverallScore:      candidate.OverallScore,
			ShortRejectReason: candidate.ShortRejectReason,
			FinalDecision:     json.RawMessage(candidate.FinalDecision),
		}
		payload, err := json.Marshal(override)
		if err != nil {
			return fmt.Errorf("failed to encode override: %w", err)
		}

		if err := tx.Model(&models.CandidateEvaluation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"decision_result": override.NewDecision,
			"manual_override": datatypes.JSON(payload),
			"updated_at":      time.Now(),
		}).Error; err != nil {
			return fmt.Errorf("failed to apply override: %w", err)
		}
		return applyCounterDelta(tx, candidate.ScreeningSessionID,
			models.Transition(candidate.DecisionResult, override.NewDecision))
	})
}

func (r *candidateRepository) ListOverrides(ctx context.Context, f models.CorrectionFilter) ([]models.CandidateEvaluation, error) {
	q := r.db.WithContext(ctx).
		Where(datatypes.JSONQuery("manual_override").HasKey("newDecision"))
	if f.Name != "" {
		q = q.Where("full_name ILIKE ?", "%"+f.Name+"%")
	}
	if f.Decision != "" {
		q = q.Where(datatypes.JSONQuery("manual_override").Equals(string(f.Decision), "newDecision"))
	}
	if f.DateFrom != nil {
		q = q.Where("(manual_override->>'correctedAt')::timestamptz >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("(manual_override->>'correctedAt')::timestamptz < ?", f.DateTo.AddDate(0, 0, 1))
	}

	var candidates []models.CandidateEvaluation
	if err := q.Order("(manual_override->>'correctedAt') DESC").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	return candidates, nil
}

// Delete removes a candidate and takes it out of its session's counters.
func (r *candidateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := lockCandidate(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.CandidateEvaluation{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete candidate: %w", err)
		}
		if err := tx.Model(&models.ScreeningSession{}).
			Where("id = ?", candidate.ScreeningSessionID).
			Update("total_candidates", gorm.Expr("total_candidates - 1")).Error; err != nil {
			return fmt.Errorf("failed to adjust session total: %w", err)
		}
		return applyCounterDelta(tx, candidate.ScreeningSessionID,
			models.DeltaFor(candidate.DecisionResult).Negate())
	})
}

func (r *candidateRepository) FindWithoutCountry(ctx context.Context) ([]models.CandidateEvaluation, error) {
	var candidates []models.CandidateEvaluation
	if err := r.db.WithContext(ctx).
		Select("id", "profile_data", "location").
		Where("country_id IS NULL").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to find candidates without country: %w", err)
	}
	return candidates, nil
}

func (r *candidateRepository) CountWithoutCountry(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CandidateEvaluation{}).
		Where("country_id IS NULL").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count candidates without country: %w", err)
	}
	return count, nil
}

func (r *candidateRepository) UpdateCountry(ctx context.Context, id uuid.UUID, countryID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.CandidateEvaluation{}).
		Where("id = ?", id).
		Update("country_id", countryID)
	if result.Error != nil {
		return fmt.Errorf("failed to update candidate country: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func lockCandidate(tx *gorm.DB, id uuid.UUID) (*models.CandidateEvaluation, error) {
	var candidate models.CandidateEvaluation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock candidate: %w", err)
	}
	return &candidate, nil
}
