package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

// memStore backs the in-memory repositories. Counter moves go through
// models.Transition the same way the gorm repositories do.
type memStore struct {
	mu         sync.Mutex
	sessions   map[uuid.UUID]*models.ScreeningSession
	candidates map[uuid.UUID]*models.CandidateEvaluation
	countries  map[uuid.UUID]*models.Country
	errors     []models.SessionError
	order      []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		sessions:   make(map[uuid.UUID]*models.ScreeningSession),
		candidates: make(map[uuid.UUID]*models.CandidateEvaluation),
		countries:  make(map[uuid.UUID]*models.Country),
	}
}

func (s *memStore) apply(sessionID uuid.UUID, d models.CounterDelta) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	session.CandidatesProcessed += d.Processed
	session.PassedCandidates += d.Passed
	session.RejectedCandidates += d.Rejected
	session.ErroredCandidates += d.Errored
}

func (s *memStore) session(id uuid.UUID) models.ScreeningSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[id]
}

func (s *memStore) candidate(id uuid.UUID) models.CandidateEvaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.candidates[id]
}

// seedSession stores a session with one PENDING candidate per profile.
func (s *memStore) seedSession(config models.ScreeningConfig, profiles ...map[string]any) (uuid.UUID, []uuid.UUID) {
	raw, _ := json.Marshal(config)
	session := &models.ScreeningSession{
		ID:              uuid.New(),
		Config:          datatypes.JSON(raw),
		Status:          models.SessionPending,
		TotalCandidates: len(profiles),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session

	ids := make([]uuid.UUID, 0, len(profiles))
	for _, p := range profiles {
		data, _ := json.Marshal(p)
		profile := models.ProfileFromMap(p)
		c := &models.CandidateEvaluation{
			ID:                 uuid.New(),
			ScreeningSessionID: session.ID,
			CandidateID:        CanonicalProfileURL(profile.LinkedinURL),
			LinkedinURL:        profile.LinkedinURL,
			FullName:           profile.DisplayName(),
			CurrentTitle:       profile.JobTitle,
			CurrentCompany:     profile.CompanyName,
			Location:           profile.AddressCountryOnly,
			ProfileData:        datatypes.JSON(data),
			DecisionResult:     models.DecisionPending,
			CreatedAt:          time.Now(),
		}
		s.candidates[c.ID] = c
		s.order = append(s.order, c.ID)
		ids = append(ids, c.ID)
	}
	return session.ID, ids
}

type memCandidateRepo struct{ s *memStore }

var _ repositories.CandidateRepository = memCandidateRepo{}

func (r memCandidateRepo) FindByID(_ context.Context, id uuid.UUID) (*models.CandidateEvaluation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCandidateRepo) FindPending(_ context.Context, sessionID uuid.UUID, limit int) ([]models.CandidateEvaluation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.CandidateEvaluation
	for _, id := range r.s.order {
		c, ok := r.s.candidates[id]
		if !ok || c.ScreeningSessionID != sessionID || c.DecisionResult != models.DecisionPending {
			continue
		}
		out = append(out, *c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memCandidateRepo) CountUnfinished(_ context.Context, sessionID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.candidates {
		if c.ScreeningSessionID == sessionID && c.DecisionResult.Unfinished() {
			n++
		}
	}
	return n, nil
}

func (r memCandidateRepo) matches(c *models.CandidateEvaluation, f models.CandidateFilter) bool {
	if f.SessionID != nil && c.ScreeningSessionID != *f.SessionID {
		return false
	}
	if f.CountryID != nil && (c.CountryID == nil || *c.CountryID != *f.CountryID) {
		return false
	}
	if f.Decision != "" && f.Decision != "ALL" && string(c.DecisionResult) != string(f.Decision) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(c.FullName), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func (r memCandidateRepo) CountByDecision(_ context.Context, f models.CandidateFilter) (map[models.DecisionResult]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[models.DecisionResult]int)
	for _, c := range r.s.candidates {
		if r.matches(c, f) {
			counts[c.DecisionResult]++
		}
	}
	return counts, nil
}

func (r memCandidateRepo) List(_ context.Context, f models.CandidateFilter) ([]models.CandidateEvaluation, int64, error) {
	r.s.mu.Lock()
	var all []models.CandidateEvaluation
	for _, id := range r.s.order {
		if c, ok := r.s.candidates[id]; ok && r.matches(c, f) {
			all = append(all, *c)
		}
	}
	r.s.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].OverallScore, all[j].OverallScore
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return *a > *b
	})

	total := int64(len(all))
	if f.Limit > 0 {
		start := min(f.Offset, len(all))
		end := min(start+f.Limit, len(all))
		all = all[start:end]
	}
	return all, total, nil
}

func (r memCandidateRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CandidateEvaluation, error) {
	list, _, err := r.List(ctx, models.CandidateFilter{SessionID: &sessionID})
	return list, err
}

func (r memCandidateRepo) Claim(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok || c.DecisionResult != models.DecisionPending {
		return repositories.ErrNotClaimable
	}
	now := time.Now()
	c.DecisionResult = models.DecisionInProgress
	c.ClaimedAt = &now
	return nil
}

func (r memCandidateRepo) CompleteEvaluation(_ context.Context, id uuid.UUID, outcome *models.EvaluationOutcome) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if c.DecisionResult != models.DecisionInProgress {
		return repositories.ErrNotClaimable
	}

	language, _ := json.Marshal(outcome.LanguageCheck)
	companies, _ := json.Marshal(outcome.EnrichedCompanies)
	decision, err := json.Marshal(outcome.Decision)
	if err != nil {
		return err
	}

	prior := c.DecisionResult
	result := outcome.Result()
	score := outcome.Decision.OverallScore
	now := time.Now()

	c.DecisionResult = result
	c.OverallScore = &score
	c.LanguageCheck = datatypes.JSON(language)
	c.EnrichedCompanies = datatypes.JSON(companies)
	c.FinalDecision = datatypes.JSON(decision)
	c.SecondaryEvaluation = nil
	c.ShortRejectReason = nil
	c.EvaluatedAt = &now
	c.ClaimedAt = nil
	if reason := outcome.Decision.ShortRejectReason(); reason != "" {
		c.ShortRejectReason = &reason
	}
	if outcome.Secondary != nil {
		secondary, _ := json.Marshal(outcome.Secondary)
		c.SecondaryEvaluation = datatypes.JSON(secondary)
	}

	r.s.apply(c.ScreeningSessionID, models.Transition(prior, result))
	return nil
}

func (r memCandidateRepo) MarkErrored(_ context.Context, id uuid.UUID, message, stack string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	r.s.errors = append(r.s.errors, models.SessionError{
		ID:                 uuid.New(),
		ScreeningSessionID: c.ScreeningSessionID,
		CandidateID:        c.ID,
		ErrorMessage:       message,
		ErrorStack:         stack,
	})
	if !c.DecisionResult.Unfinished() {
		return nil
	}
	prior := c.DecisionResult
	c.DecisionResult = models.DecisionErrored
	c.ClaimedAt = nil
	r.s.apply(c.ScreeningSessionID, models.Transition(prior, models.DecisionErrored))
	return nil
}

func (r memCandidateRepo) ResetForRetry(_ context.Context, id uuid.UUID) (models.DecisionResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return "", repositories.ErrNotFound
	}
	if c.DecisionResult == models.DecisionInProgress {
		return "", repositories.ErrNotClaimable
	}
	prior := c.DecisionResult
	c.DecisionResult = models.DecisionPending
	c.OverallScore = nil
	c.LanguageCheck = nil
	c.EnrichedCompanies = nil
	c.FinalDecision = nil
	c.SecondaryEvaluation = nil
	c.ShortRejectReason = nil
	c.EvaluatedAt = nil
	r.s.apply(c.ScreeningSessionID, models.Transition(prior, models.DecisionPending))
	return prior, nil
}

func (r memCandidateRepo) ApplyOverride(_ context.Context, id uuid.UUID, override models.ManualOverride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if c.DecisionResult.Unfinished() {
		return repositories.ErrNotClaimable
	}
	override.OriginalDecision = c.DecisionResult
	override.Snapshot = models.OverrideSnapshot{
		OverallScore:      c.OverallScore,
		ShortRejectReason: c.ShortRejectReason,
		FinalDecision:     json.RawMessage(c.FinalDecision),
	}
	payload, err := json.Marshal(override)
	if err != nil {
		return err
	}
	prior := c.DecisionResult
	c.DecisionResult = override.NewDecision
	c.ManualOverride = datatypes.JSON(payload)
	r.s.apply(c.ScreeningSessionID, models.Transition(prior, override.NewDecision))
	return nil
}

func (r memCandidateRepo) ListOverrides(_ context.Context, f models.CorrectionFilter) ([]models.CandidateEvaluation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.CandidateEvaluation
	for _, id := range r.s.order {
		c, ok := r.s.candidates[id]
		if !ok || len(c.ManualOverride) == 0 {
			continue
		}
		if f.Name != "" && !strings.Contains(strings.ToLower(c.FullName), strings.ToLower(f.Name)) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r memCandidateRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.candidates, id)
	if session, ok := r.s.sessions[c.ScreeningSessionID]; ok {
		session.TotalCandidates--
	}
	r.s.apply(c.ScreeningSessionID, models.DeltaFor(c.DecisionResult).Negate())
	return nil
}

func (r memCandidateRepo) FindWithoutCountry(context.Context) ([]models.CandidateEvaluation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.CandidateEvaluation
	for _, id := range r.s.order {
		if c, ok := r.s.candidates[id]; ok && c.CountryID == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memCandidateRepo) CountWithoutCountry(ctx context.Context) (int64, error) {
	list, err := r.FindWithoutCountry(ctx)
	return int64(len(list)), err
}

func (r memCandidateRepo) UpdateCountry(_ context.Context, id uuid.UUID, countryID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.CountryID = &countryID
	return nil
}

type memSessionRepo struct{ s *memStore }

var _ repositories.SessionRepository = memSessionRepo{}

func (r memSessionRepo) CreateWithCandidates(_ context.Context, session *models.ScreeningSession, candidates []models.CandidateEvaluation) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var inserted int64
	seen := make(map[string]bool)
	for i := range candidates {
		c := candidates[i]
		if seen[c.CandidateID] {
			continue
		}
		seen[c.CandidateID] = true
		c.ID = uuid.New()
		c.ScreeningSessionID = session.ID
		r.s.candidates[c.ID] = &c
		r.s.order = append(r.s.order, c.ID)
		inserted++
	}
	session.TotalCandidates = int(inserted)
	cp := *session
	r.s.sessions[session.ID] = &cp
	return inserted, nil
}

func (r memSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*models.ScreeningSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (r memSessionRepo) List(_ context.Context, limit int) ([]models.ScreeningSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.ScreeningSession
	for _, session := range r.s.sessions {
		out = append(out, *session)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memSessionRepo) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if session.Status != models.SessionPending {
		return false, nil
	}
	now := time.Now()
	session.Status = models.SessionProcessing
	session.StartedAt = &now
	return true, nil
}

func (r memSessionRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	return nil
}

func (r memSessionRepo) SetCounters(_ context.Context, id uuid.UUID, c models.SessionCounters) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	session.TotalCandidates = c.Total
	session.CandidatesProcessed = c.Processed
	session.PassedCandidates = c.Passed
	session.RejectedCandidates = c.Rejected
	session.ErroredCandidates = c.Errored
	return nil
}

func (r memSessionRepo) ListErrors(_ context.Context, id uuid.UUID) ([]models.SessionError, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.SessionError
	for _, e := range r.s.errors {
		if e.ScreeningSessionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type memCountryRepo struct{ s *memStore }

var _ repositories.CountryRepository = memCountryRepo{}

func (r memCountryRepo) FindOrCreate(_ context.Context, name string) (*models.Country, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.countries {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	c := &models.Country{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	r.s.countries[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r memCountryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Country, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.countries[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCountryRepo) List(context.Context) ([]models.Country, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Country, 0, len(r.s.countries))
	for _, c := range r.s.countries {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCountryRepo) ListWithCounts(ctx context.Context) ([]models.CountryWithCounts, error) {
	countries, _ := r.List(ctx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.CountryWithCounts, 0, len(countries))
	for _, c := range countries {
		row := models.CountryWithCounts{Country: c}
		for _, cand := range r.s.candidates {
			if cand.CountryID != nil && *cand.CountryID == c.ID {
				row.CandidateCount++
			}
		}
		for _, session := range r.s.sessions {
			if session.CountryID != nil && *session.CountryID == c.ID {
				row.SessionCount++
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (r memCountryRepo) Create(ctx context.Context, name string) (*models.Country, error) {
	return r.FindOrCreate(ctx, name)
}

func (r memCountryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.countries[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.s.countries, id)
	for _, c := range r.s.candidates {
		if c.CountryID != nil && *c.CountryID == id {
			c.CountryID = nil
		}
	}
	return nil
}

func (r memCountryRepo) DeleteOrphans(context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	used := make(map[uuid.UUID]bool)
	for _, c := range r.s.candidates {
		if c.CountryID != nil {
			used[*c.CountryID] = true
		}
	}
	var deleted []string
	for id, c := range r.s.countries {
		if !used[id] {
			deleted = append(deleted, c.Name)
			delete(r.s.countries, id)
		}
	}
	sort.Strings(deleted)
	return deleted, nil
}

// scriptedGemini answers primary and escalation prompts from fixed
// responses. The escalation prompt is recognised by its filled-in initial
// score line.
type scriptedGemini struct {
	mu        sync.Mutex
	primary   []string
	secondary []string
	err       error
	calls     []string
}

func (g *scriptedGemini) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (g *scriptedGemini) GenerateJSON(ctx context.Context, systemPolicy, payload string, _ float32) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}

	queue := &g.primary
	stage := "primary"
	if strings.Contains(systemPolicy, "Initial Score:") {
		queue = &g.secondary
		stage = "secondary"
	}
	g.calls = append(g.calls, stage)

	if len(*queue) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return resp, nil
}

func (g *scriptedGemini) GenerateJSONWithRetry(ctx context.Context, systemPolicy, payload string, temperature float32, _ int) (string, error) {
	return g.GenerateJSON(ctx, systemPolicy, payload, temperature)
}

func (g *scriptedGemini) stages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type stubSearch struct {
	mu      sync.Mutex
	queries []string
	fail    map[string]bool
}

func (s *stubSearch) Search(_ context.Context, query string) (*SearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	for name := range s.fail {
		if strings.HasPrefix(query, name+" ") {
			return nil, errors.New("search unavailable")
		}
	}
	return &SearchResponse{
		Answer:  "About " + strings.SplitN(query, " company", 2)[0],
		Results: []SearchResult{{URL: "https://example.com"}},
	}, nil
}

const (
	passJSON = `{"decision":"PASS","reasoning":"Hands-on builder","overallScore":84,"confidence":80,
"strengths":["Built platform"],"concerns":[],"interviewRecommendation":"Recommended",
"detailedAnalysis":{"technicalDepth":85,"leadershipCapability":80,"customerFacing":70,"culturalFit":75,
"handsOnCurrent":90,"builderDNA":88,"startupFit":80,"innovationCurrency":82}}`

	reviewJSON = `{"decision":"REVIEW","reviewReason":"mixed signal","reasoning":"Strong but unclear hands-on work",
"overallScore":65,"confidence":60,"strengths":["Scaled team"],"concerns":["Recent roles managerial"],
"interviewRecommendation":"Consider","detailedAnalysis":{"technicalDepth":70,"leadershipCapability":75,
"customerFacing":60,"culturalFit":65,"handsOnCurrent":55,"builderDNA":60,"startupFit":65,"innovationCurrency":60}}`

	rejectJSON = `{"decision":"REJECT","shortRejectReason":"No hands-on work since 2015","reasoning":"Pure people manager",
"overallScore":42,"confidence":70,"strengths":["Large org experience"],"concerns":["No recent code"],
"interviewRecommendation":"Not Recommended","detailedAnalysis":{"technicalDepth":40,"leadershipCapability":70,
"customerFacing":50,"culturalFit":45,"handsOnCurrent":20,"builderDNA":30,"startupFit":35,"innovationCurrency":40}}`

	secondaryPassJSON = `{"finalDecision":"PASS","reasoning":"Still ships code weekly","keyFindings":["Active GitHub"],
"builderDNAEvidence":"Founded two products","innovationCurrencyAssessment":"Current","overqualificationAssessment":"Fits",
"patternMatch":"Builder who became leader","updatedScore":78,"confidence":75}`
)

func germanProfile() map[string]any {
	return map[string]any{
		"linkedinUrl":        "https://www.linkedin.com/in/anna-schmidt",
		"fullName":           "Anna Schmidt",
		"jobTitle":           "CTO",
		"companyName":        "Voicebox GmbH",
		"addressCountryOnly": "Germany",
		"languages": []any{
			map[string]any{"name": "German", "proficiency": "Native or bilingual proficiency"},
			map[string]any{"name": "English"},
		},
		"experiences": []any{
			map[string]any{"companyName": "Voicebox GmbH", "title": "CTO"},
		},
	}
}

func newTestScreening(store *memStore, gemini GeminiService) ScreeningService {
	builder := NewPromptBuilder(nil)
	return NewScreeningService(
		memCandidateRepo{s: store},
		memSessionRepo{s: store},
		nil,
		NewEvaluatorService(gemini, nil, builder, 0),
		NewEscalationService(gemini, builder, 0),
	)
}
