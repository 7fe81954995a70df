package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alfredoptarigan/cto-screener/internal/models"
)

func TestProcessCandidateEscalatesReviewToPass(t *testing.T) {
	store := newMemStore()
	config := models.DefaultScreeningConfig()
	config.EnableCompanyEnrichment = false
	sessionID, ids := store.seedSession(config, germanProfile())

	gemini := &scriptedGemini{primary: []string{reviewJSON}, secondary: []string{secondaryPassJSON}}
	svc := newTestScreening(store, gemini)

	before := store.session(sessionID)
	result, err := svc.ProcessCandidate(context.Background(), ids[0], sessionID)
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if !result.Success || result.Decision != models.VerdictPass {
		t.Fatalf("result = %+v, want successful PASS", result)
	}

	if got := gemini.stages(); !reflect.DeepEqual(got, []string{"primary", "secondary"}) {
		t.Errorf("LLM stages = %v, want primary then secondary", got)
	}

	c := store.candidate(ids[0])
	if c.DecisionResult != models.DecisionPass {
		t.Errorf("decision_result = %s, want PASS", c.DecisionResult)
	}
	if c.OverallScore == nil || *c.OverallScore != 78 {
		t.Errorf("overall_score = %v, want 78", c.OverallScore)
	}
	if len(c.SecondaryEvaluation) == 0 {
		t.Error("secondary evaluation was not stored")
	}

	lang, err := c.Language()
	if err != nil || lang == nil {
		t.Fatalf("Language() = %v, %v", lang, err)
	}
	if !lang.Passed || lang.Confidence != 90 {
		t.Errorf("language check passed=%v confidence=%d, want true 90", lang.Passed, lang.Confidence)
	}

	decision, err := c.Decision()
	if err != nil {
		t.Fatalf("Decision() error = %v", err)
	}
	if decision.EscalationReason != "mixed signal" {
		t.Errorf("escalation reason = %q, want %q", decision.EscalationReason, "mixed signal")
	}

	after := store.session(sessionID)
	if after.PassedCandidates != before.PassedCandidates+1 {
		t.Errorf("passed = %d, want %d", after.PassedCandidates, before.PassedCandidates+1)
	}
	if after.CandidatesProcessed != before.CandidatesProcessed+1 {
		t.Errorf("processed = %d, want %d", after.CandidatesProcessed, before.CandidatesProcessed+1)
	}
}

func TestProcessCandidateSkipsEscalationForPass(t *testing.T) {
	store := newMemStore()
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())

	gemini := &scriptedGemini{primary: []string{passJSON}}
	svc := newTestScreening(store, gemini)

	if _, err := svc.ProcessCandidate(context.Background(), ids[0], sessionID); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if got := gemini.stages(); !reflect.DeepEqual(got, []string{"primary"}) {
		t.Errorf("LLM stages = %v, want primary only", got)
	}
	if c := store.candidate(ids[0]); len(c.SecondaryEvaluation) != 0 {
		t.Errorf("secondary evaluation = %s, want none", c.SecondaryEvaluation)
	}
}

func TestProcessCandidateFailsClosed(t *testing.T) {
	tests := []struct {
		name   string
		gemini *scriptedGemini
	}{
		{name: "llm unavailable", gemini: &scriptedGemini{err: errors.New("quota exceeded")}},
		{name: "malformed json", gemini: &scriptedGemini{primary: []string{"not json at all"}}},
		{name: "reject without reason", gemini: &scriptedGemini{primary: []string{strings.Replace(passJSON, `"PASS"`, `"REJECT"`, 1)}}},
		{name: "review escalates to invalid verdict", gemini: &scriptedGemini{
			primary:   []string{reviewJSON},
			secondary: []string{strings.Replace(secondaryPassJSON, `"PASS"`, `"REVIEW"`, 1)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())

			result, err := newTestScreening(store, tt.gemini).ProcessCandidate(context.Background(), ids[0], sessionID)
			if err != nil {
				t.Fatalf("ProcessCandidate() error = %v", err)
			}
			if !result.Success || result.Decision != models.VerdictReject {
				t.Fatalf("result = %+v, want successful REJECT", result)
			}

			c := store.candidate(ids[0])
			if c.DecisionResult != models.DecisionReject {
				t.Errorf("decision_result = %s, want REJECT", c.DecisionResult)
			}
			if c.OverallScore == nil || *c.OverallScore != 0 {
				t.Errorf("overall_score = %v, want 0", c.OverallScore)
			}
			if c.ShortRejectReason == nil || *c.ShortRejectReason == "" {
				t.Error("short reject reason is empty")
			}

			s := store.session(sessionID)
			if s.RejectedCandidates != 1 || s.CandidatesProcessed != 1 {
				t.Errorf("counters rejected=%d processed=%d, want 1 1", s.RejectedCandidates, s.CandidatesProcessed)
			}
		})
	}
}

type panickingEvaluator struct{}

func (panickingEvaluator) Evaluate(context.Context, CandidateBundle) *models.Decision {
	panic("evaluator exploded")
}

func TestProcessCandidateIsolatesFailures(t *testing.T) {
	store := newMemStore()
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())

	svc := NewScreeningService(memCandidateRepo{s: store}, memSessionRepo{s: store}, nil, panickingEvaluator{}, nil)

	result, err := svc.ProcessCandidate(context.Background(), ids[0], sessionID)
	if err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if result.Success {
		t.Fatal("result.Success = true, want false")
	}
	if !strings.Contains(result.Error, "evaluator exploded") {
		t.Errorf("result.Error = %q", result.Error)
	}

	if c := store.candidate(ids[0]); c.DecisionResult != models.DecisionErrored {
		t.Errorf("decision_result = %s, want ERRORED", c.DecisionResult)
	}
	s := store.session(sessionID)
	if s.ErroredCandidates != 1 || s.CandidatesProcessed != 1 {
		t.Errorf("counters errored=%d processed=%d, want 1 1", s.ErroredCandidates, s.CandidatesProcessed)
	}

	errs, _ := memSessionRepo{s: store}.ListErrors(context.Background(), sessionID)
	if len(errs) != 1 {
		t.Fatalf("session errors = %d, want 1", len(errs))
	}
	if errs[0].ErrorStack == "" {
		t.Error("session error has no stack")
	}
}

func TestProcessCandidateRejectsSecondClaim(t *testing.T) {
	store := newMemStore()
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())
	svc := newTestScreening(store, &scriptedGemini{primary: []string{passJSON}})

	if _, err := svc.ProcessCandidate(context.Background(), ids[0], sessionID); err != nil {
		t.Fatalf("first ProcessCandidate() error = %v", err)
	}
	if _, err := svc.ProcessCandidate(context.Background(), ids[0], sessionID); !errors.Is(err, ErrCandidateClaimed) {
		t.Errorf("second ProcessCandidate() error = %v, want ErrCandidateClaimed", err)
	}
	if _, err := svc.ProcessCandidate(context.Background(), ids[0], uuid.New()); !errors.Is(err, ErrCandidateNotFound) {
		t.Errorf("wrong session error = %v, want ErrCandidateNotFound", err)
	}

	if s := store.session(sessionID); s.CandidatesProcessed != 1 {
		t.Errorf("processed = %d, want 1", s.CandidatesProcessed)
	}
}

func TestRetryErroredCandidate(t *testing.T) {
	store := newMemStore()
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())

	good := store.candidate(ids[0]).ProfileData
	store.mu.Lock()
	store.candidates[ids[0]].ProfileData = datatypes.JSON(`{"broken"`)
	store.mu.Unlock()

	svc := newTestScreening(store, &scriptedGemini{primary: []string{passJSON}})
	if _, err := svc.ProcessCandidate(context.Background(), ids[0], sessionID); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if s := store.session(sessionID); s.ErroredCandidates != 1 {
		t.Fatalf("errored = %d, want 1", s.ErroredCandidates)
	}

	store.mu.Lock()
	store.candidates[ids[0]].ProfileData = good
	store.mu.Unlock()

	result, err := svc.RetryCandidate(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("RetryCandidate() error = %v", err)
	}
	if !result.Success || result.Decision != models.VerdictPass {
		t.Fatalf("result = %+v, want successful PASS", result)
	}

	s := store.session(sessionID)
	want := models.SessionCounters{Total: 1, Processed: 1, Passed: 1}
	got := models.SessionCounters{
		Total:     s.TotalCandidates,
		Processed: s.CandidatesProcessed,
		Passed:    s.PassedCandidates,
		Rejected:  s.RejectedCandidates,
		Errored:   s.ErroredCandidates,
	}
	if got != want {
		t.Errorf("counters = %+v, want %+v", got, want)
	}
}

func TestRetryReprocessKeepsCountersConsistent(t *testing.T) {
	tests := []struct {
		name      string
		responses []string
		first     models.Verdict
		second    models.Verdict
		want      models.SessionCounters
	}{
		{
			name:      "pass then reject",
			responses: []string{passJSON, rejectJSON},
			first:     models.VerdictPass,
			second:    models.VerdictReject,
			want:      models.SessionCounters{Total: 1, Processed: 1, Rejected: 1},
		},
		{
			name:      "reject then pass",
			responses: []string{rejectJSON, passJSON},
			first:     models.VerdictReject,
			second:    models.VerdictPass,
			want:      models.SessionCounters{Total: 1, Processed: 1, Passed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())
			svc := newTestScreening(store, &scriptedGemini{primary: tt.responses})
			ctx := context.Background()

			first, err := svc.ProcessCandidate(ctx, ids[0], sessionID)
			if err != nil {
				t.Fatalf("ProcessCandidate() error = %v", err)
			}
			if first.Decision != tt.first {
				t.Fatalf("first decision = %s, want %s", first.Decision, tt.first)
			}

			second, err := svc.RetryCandidate(ctx, ids[0])
			if err != nil {
				t.Fatalf("RetryCandidate() error = %v", err)
			}
			if second.Decision != tt.second {
				t.Fatalf("retried decision = %s, want %s", second.Decision, tt.second)
			}

			s := store.session(sessionID)
			got := models.SessionCounters{
				Total:     s.TotalCandidates,
				Processed: s.CandidatesProcessed,
				Passed:    s.PassedCandidates,
				Rejected:  s.RejectedCandidates,
				Errored:   s.ErroredCandidates,
			}
			if got.Processed != got.Passed+got.Rejected+got.Errored {
				t.Errorf("counters %+v break processed == passed + rejected + errored", got)
			}
			if got != tt.want {
				t.Errorf("counters = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApplyCorrection(t *testing.T) {
	store := newMemStore()
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())
	svc := newTestScreening(store, &scriptedGemini{primary: []string{passJSON}})
	ctx := context.Background()

	if _, err := svc.ProcessCandidate(ctx, ids[0], sessionID); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}

	invalid := []models.CorrectionRequest{
		{CandidateID: "not-a-uuid", NewDecision: models.DecisionReject, Reason: "x"},
		{CandidateID: ids[0].String(), NewDecision: models.DecisionPending, Reason: "x"},
		{CandidateID: ids[0].String(), NewDecision: models.DecisionReject, Reason: "   "},
	}
	for _, req := range invalid {
		if _, err := svc.ApplyCorrection(ctx, req); !errors.Is(err, ErrInvalidCorrection) {
			t.Errorf("ApplyCorrection(%+v) error = %v, want ErrInvalidCorrection", req, err)
		}
	}

	updated, err := svc.ApplyCorrection(ctx, models.CorrectionRequest{
		CandidateID: ids[0].String(),
		NewDecision: models.DecisionReject,
		Reason:      " No recent hands-on work ",
		CorrectedBy: "recruiter",
	})
	if err != nil {
		t.Fatalf("ApplyCorrection() error = %v", err)
	}
	if updated.DecisionResult != models.DecisionReject {
		t.Errorf("decision_result = %s, want REJECT", updated.DecisionResult)
	}

	override, err := updated.Override()
	if err != nil || override == nil {
		t.Fatalf("Override() = %v, %v", override, err)
	}
	if override.OriginalDecision != models.DecisionPass || override.Reason != "No recent hands-on work" {
		t.Errorf("override = %+v", override)
	}
	if override.Snapshot.OverallScore == nil || *override.Snapshot.OverallScore != 84 {
		t.Errorf("snapshot score = %v, want 84", override.Snapshot.OverallScore)
	}

	s := store.session(sessionID)
	if s.PassedCandidates != 0 || s.RejectedCandidates != 1 || s.CandidatesProcessed != 1 {
		t.Errorf("counters passed=%d rejected=%d processed=%d, want 0 1 1",
			s.PassedCandidates, s.RejectedCandidates, s.CandidatesProcessed)
	}

	summary, err := svc.ListCorrections(ctx, models.CorrectionFilter{})
	if err != nil {
		t.Fatalf("ListCorrections() error = %v", err)
	}
	if summary.Total != 1 || summary.ByNewDecision["REJECT"] != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestApplyCorrectionRequiresEvaluation(t *testing.T) {
	store := newMemStore()
	_, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile())
	svc := newTestScreening(store, &scriptedGemini{})

	_, err := svc.ApplyCorrection(context.Background(), models.CorrectionRequest{
		CandidateID: ids[0].String(),
		NewDecision: models.DecisionPass,
		Reason:      "looks good",
	})
	if !errors.Is(err, ErrInvalidCorrection) {
		t.Errorf("error = %v, want ErrInvalidCorrection", err)
	}
}

func TestDeleteCandidateAdjustsCounters(t *testing.T) {
	store := newMemStore()
	second := germanProfile()
	second["linkedinUrl"] = "https://www.linkedin.com/in/jonas-weber"
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile(), second)
	svc := newTestScreening(store, &scriptedGemini{primary: []string{passJSON}})
	ctx := context.Background()

	if _, err := svc.ProcessCandidate(ctx, ids[0], sessionID); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	if err := svc.DeleteCandidate(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteCandidate() error = %v", err)
	}
	if err := svc.DeleteCandidate(ctx, ids[0]); !errors.Is(err, ErrCandidateNotFound) {
		t.Errorf("second DeleteCandidate() error = %v, want ErrCandidateNotFound", err)
	}

	s := store.session(sessionID)
	if s.TotalCandidates != 1 || s.CandidatesProcessed != 0 || s.PassedCandidates != 0 {
		t.Errorf("counters total=%d processed=%d passed=%d, want 1 0 0",
			s.TotalCandidates, s.CandidatesProcessed, s.PassedCandidates)
	}
}

func TestReconcileCounters(t *testing.T) {
	store := newMemStore()
	second := germanProfile()
	second["linkedinUrl"] = "https://www.linkedin.com/in/jonas-weber"
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, germanProfile(), second)
	svc := newTestScreening(store, &scriptedGemini{primary: []string{passJSON}})
	ctx := context.Background()

	if _, err := svc.ProcessCandidate(ctx, ids[0], sessionID); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}

	// drift the stored counters
	if err := (memSessionRepo{s: store}).SetCounters(ctx, sessionID, models.SessionCounters{Total: 9, Processed: 5, Passed: 1}); err != nil {
		t.Fatal(err)
	}

	counters, err := svc.ReconcileCounters(ctx, sessionID)
	if err != nil {
		t.Fatalf("ReconcileCounters() error = %v", err)
	}
	want := models.SessionCounters{Total: 2, Processed: 1, Passed: 1}
	if *counters != want {
		t.Errorf("counters = %+v, want %+v", *counters, want)
	}
	if !counters.Consistent() {
		t.Error("reconciled counters are inconsistent")
	}

	if _, err := svc.ReconcileCounters(ctx, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want ErrSessionNotFound", err)
	}
}
