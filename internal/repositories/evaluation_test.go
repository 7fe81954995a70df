package repositories

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/cto-screener/internal/models"
)

// openTestDB connects to the database named by TEST_DATABASE_DSN. The
// repository tests need real row locks and ON CONFLICT, so they skip when
// no database is configured.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Country{},
		&models.ScreeningSession{},
		&models.CandidateEvaluation{},
		&models.SessionError{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, db *gorm.DB, candidateIDs ...string) (*models.ScreeningSession, int64) {
	t.Helper()
	session := &models.ScreeningSession{Status: models.SessionPending}
	candidates := make([]models.CandidateEvaluation, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates = append(candidates, models.CandidateEvaluation{
			CandidateID:    id,
			LinkedinURL:    "https://linkedin.com/in/" + id,
			FullName:       id,
			DecisionResult: models.DecisionPending,
		})
	}

	inserted, err := NewSessionRepository(db).CreateWithCandidates(context.Background(), session, candidates)
	if err != nil {
		t.Fatalf("CreateWithCandidates() error = %v", err)
	}
	t.Cleanup(func() {
		db.Where("screening_session_id = ?", session.ID).Delete(&models.SessionError{})
		db.Where("screening_session_id = ?", session.ID).Delete(&models.CandidateEvaluation{})
		db.Where("id = ?", session.ID).Delete(&models.ScreeningSession{})
	})
	return session, inserted
}

func candidateIDs(t *testing.T, db *gorm.DB, sessionID uuid.UUID) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	if err := db.Model(&models.CandidateEvaluation{}).
		Where("screening_session_id = ?", sessionID).
		Order("candidate_id ASC").
		Pluck("id", &ids).Error; err != nil {
		t.Fatalf("failed to list candidate ids: %v", err)
	}
	return ids
}

func reloadSession(t *testing.T, db *gorm.DB, id uuid.UUID) *models.ScreeningSession {
	t.Helper()
	session, err := NewSessionRepository(db).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	return session
}

func passOutcome() *models.EvaluationOutcome {
	return &models.EvaluationOutcome{
		LanguageCheck:  &models.LanguageCheck{},
		Decision:       &models.Decision{Outcome: models.PassOutcome{}, OverallScore: 82},
		ProcessingTime: 1500 * time.Millisecond,
	}
}

func rejectOutcome() *models.EvaluationOutcome {
	return &models.EvaluationOutcome{
		LanguageCheck:  &models.LanguageCheck{},
		Decision:       &models.Decision{Outcome: models.MustReject("No CTO experience"), OverallScore: 31},
		ProcessingTime: time.Second,
	}
}

func TestCreateWithCandidatesSkipsDuplicates(t *testing.T) {
	db := openTestDB(t)

	session, inserted := seedSession(t, db, "alice", "bob", "alice")

	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if got := reloadSession(t, db, session.ID).TotalCandidates; got != 2 {
		t.Errorf("TotalCandidates = %d, want 2", got)
	}
	if got := len(candidateIDs(t, db, session.ID)); got != 2 {
		t.Errorf("stored candidates = %d, want 2", got)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db, time.Minute)
	ctx := context.Background()

	session, _ := seedSession(t, db, "alice")
	id := candidateIDs(t, db, session.ID)[0]

	if err := repo.Claim(ctx, id); err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}
	if err := repo.Claim(ctx, id); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("second Claim() error = %v, want ErrNotClaimable", err)
	}

	pending, err := repo.FindPending(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("FindPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("FindPending() = %d rows, want 0 while the claim is live", len(pending))
	}
}

func TestClaimTakesOverExpiredLease(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db, time.Minute)
	ctx := context.Background()

	session, _ := seedSession(t, db, "alice")
	id := candidateIDs(t, db, session.ID)[0]

	stale := time.Now().Add(-time.Hour)
	if err := db.Model(&models.CandidateEvaluation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"decision_result": models.DecisionInProgress,
		"claimed_at":      stale,
	}).Error; err != nil {
		t.Fatalf("failed to age claim: %v", err)
	}

	if err := repo.Claim(ctx, id); err != nil {
		t.Errorf("Claim() on expired lease error = %v", err)
	}
}

func TestCompleteEvaluationMovesCounters(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db, time.Minute)
	ctx := context.Background()

	session, _ := seedSession(t, db, "alice", "bob", "carol")
	ids := candidateIDs(t, db, session.ID)

	for _, id := range ids {
		if err := repo.Claim(ctx, id); err != nil {
			t.Fatalf("Claim() error = %v", err)
		}
	}
	if err := repo.CompleteEvaluation(ctx, ids[0], passOutcome()); err != nil {
		t.Fatalf("CompleteEvaluation(pass) error = %v", err)
	}
	if err := repo.CompleteEvaluation(ctx, ids[1], rejectOutcome()); err != nil {
		t.Fatalf("CompleteEvaluation(reject) error = %v", err)
	}
	if err := repo.MarkErrored(ctx, ids[2], "llm timeout", ""); err != nil {
		t.Fatalf("MarkErrored() error = %v", err)
	}

	got := reloadSession(t, db, session.ID)
	if got.CandidatesProcessed != 3 || got.PassedCandidates != 1 || got.RejectedCandidates != 1 || got.ErroredCandidates != 1 {
		t.Errorf("counters = processed %d passed %d rejected %d errored %d, want 3/1/1/1",
			got.CandidatesProcessed, got.PassedCandidates, got.RejectedCandidates, got.ErroredCandidates)
	}

	rejected, err := repo.FindByID(ctx, ids[1])
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if rejected.ShortRejectReason == nil || *rejected.ShortRejectReason != "No CTO experience" {
		t.Errorf("ShortRejectReason = %v, want %q", rejected.ShortRejectReason, "No CTO experience")
	}

	// a finished candidate cannot be completed twice
	if err := repo.CompleteEvaluation(ctx, ids[0], rejectOutcome()); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("second CompleteEvaluation() error = %v, want ErrNotClaimable", err)
	}
	unfinished, err := repo.CountUnfinished(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountUnfinished() error = %v", err)
	}
	if unfinished != 0 {
		t.Errorf("CountUnfinished() = %d, want 0", unfinished)
	}
}

func TestResetForRetryRemovesFromBucket(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db, time.Minute)
	ctx := context.Background()

	session, _ := seedSession(t, db, "alice")
	id := candidateIDs(t, db, session.ID)[0]

	if err := repo.Claim(ctx, id); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if err := repo.CompleteEvaluation(ctx, id, passOutcome()); err != nil {
		t.Fatalf("CompleteEvaluation() error = %v", err)
	}

	prior, err := repo.ResetForRetry(ctx, id)
	if err != nil {
		t.Fatalf("ResetForRetry() error = %v", err)
	}
	if prior != models.DecisionPass {
		t.Errorf("prior = %s, want PASS", prior)
	}

	got := reloadSession(t, db, session.ID)
	if got.CandidatesProcessed != 0 || got.PassedCandidates != 0 {
		t.Errorf("counters = processed %d passed %d, want 0/0", got.CandidatesProcessed, got.PassedCandidates)
	}

	candidate, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if candidate.DecisionResult != models.DecisionPending || candidate.OverallScore != nil || candidate.EvaluatedAt != nil {
		t.Errorf("candidate = %s score %v evaluated %v, want a cleared PENDING row",
			candidate.DecisionResult, candidate.OverallScore, candidate.EvaluatedAt)
	}
}

func TestResetForRetryRefusesLiveClaim(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db, time.Minute)
	ctx := context.Background()

	session, _ := seedSession(t, db, "alice")
	id := candidateIDs(t, db, session.ID)[0]

	if err := repo.Claim(ctx, id); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if _, err := repo.ResetForRetry(ctx, id); !errors.Is(err, ErrNotClaimable) {
		t.Errorf("ResetForRetry() error = %v, want ErrNotClaimable", err)
	}
}
