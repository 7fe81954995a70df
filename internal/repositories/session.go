package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/cto-screener/internal/models"
)

type SessionRepository interface {
	CreateWithCandidates(ctx context.Context, session *models.ScreeningSession, candidates []models.CandidateEvaluation) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScreeningSession, error)
	List(ctx context.Context, limit int) ([]models.ScreeningSession, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	SetCounters(ctx context.Context, id uuid.UUID, counters models.SessionCounters) error
	ListErrors(ctx context.Context, id uuid.UUID) ([]models.SessionError, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// CreateWithCandidates inserts the session and its candidates in one
// transaction, so a failed candidate insert leaves no empty session behind.
// Duplicate candidates within the session are skipped; the session total
// reflects the rows actually inserted.
func (r *sessionRepository) CreateWithCandidates(ctx context.Context, session *models.ScreeningSession, candidates []models.CandidateEvaluation) (int64, error) {
	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		for i := range candidates {
			candidates[i].ScreeningSessionID = session.ID
		}

		if len(candidates) > 0 {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(&candidates, 100)
			if result.Error != nil {
				return fmt.Errorf("failed to create candidates: %w", result.Error)
			}
			inserted = result.RowsAffected
		}

		session.TotalCandidates = int(inserted)
		return tx.Model(&models.ScreeningSession{}).
			Where("id = ?", session.ID).
			Update("total_candidates", inserted).Error
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ScreeningSession, error) {
	var session models.ScreeningSession
	if err := r.db.WithContext(ctx).Preload("Country").Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) List(ctx context.Context, limit int) ([]models.ScreeningSession, error) {
	var sessions []models.ScreeningSession
	q := r.db.WithContext(ctx).Preload("Country").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// MarkProcessing moves a pending session to processing. It returns false
// when the session had already left the pending state.
func (r *sessionRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.ScreeningSession{}).
		Where("id = ? AND status = ?", id, models.SessionPending).
		Updates(map[string]interface{}{
			"status":     models.SessionProcessing,
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark session processing: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *sessionRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.ScreeningSession{}).
		Where("id = ? AND status <> ?", id, models.SessionCompleted).
		Updates(map[string]interface{}{
			"status":       models.SessionCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark session completed: %w", result.Error)
	}
	return nil
}

// SetCounters overwrites the cached counters with recomputed values.
func (r *sessionRepository) SetCounters(ctx context.Context, id uuid.UUID, c models.SessionCounters) error {
	result := r.db.WithContext(ctx).Model(&models.ScreeningSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_candidates":     c.Total,
			"candidates_processed": c.Processed,
			"passed_candidates":    c.Passed,
			"rejected_candidates":  c.Rejected,
			"errored_candidates":   c.Errored,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set session counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sessionRepository) ListErrors(ctx context.Context, id uuid.UUID) ([]models.SessionError, error) {
	var errs []models.SessionError
	if err := r.db.WithContext(ctx).
		Where("screening_session_id = ?", id).
		Order("created_at DESC").
		Find(&errs).Error; err != nil {
		return nil, fmt.Errorf("failed to list session errors: %w", err)
	}
	return errs, nil
}

// applyCounterDelta adjusts the counters in storage with column arithmetic,
// never read-modify-write, so concurrent runs on one session stay correct.
func applyCounterDelta(db *gorm.DB, sessionID uuid.UUID, d models.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	result := db.Model(&models.ScreeningSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"candidates_processed": gorm.Expr("candidates_processed + ?", d.Processed),
			"passed_candidates":    gorm.Expr("passed_candidates + ?", d.Passed),
			"rejected_candidates":  gorm.Expr("rejected_candidates + ?", d.Rejected),
			"errored_candidates":   gorm.Expr("errored_candidates + ?", d.Errored),
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to adjust session counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
