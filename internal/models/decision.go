package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecisionSchemaVersion is stamped on every persisted decision blob.
const DecisionSchemaVersion = 1

const maxListItems = 10

type Verdict string

const (
	VerdictPass   Verdict = "PASS"
	VerdictReview Verdict = "REVIEW"
	VerdictReject Verdict = "REJECT"
)

type InterviewRecommendation string

const (
	RecommendationHighly         InterviewRecommendation = "Highly Recommended"
	RecommendationRecommended    InterviewRecommendation = "Recommended"
	RecommendationConsider       InterviewRecommendation = "Consider"
	RecommendationNotRecommended InterviewRecommendation = "Not Recommended"
)

func (r InterviewRecommendation) Valid() bool {
	switch r {
	case RecommendationHighly, RecommendationRecommended, RecommendationConsider, RecommendationNotRecommended:
		return true
	}
	return false
}

var (
	ErrMissingReviewReason = errors.New("reviewReason is required for REVIEW")
	ErrMissingRejectReason = errors.New("shortRejectReason is required for REJECT")
)

// Outcome is the closed set of decision kinds. Each kind carries exactly the
// data it requires, so a REJECT without a short reason cannot be built
// through the constructors.
type Outcome interface {
	Verdict() Verdict
	isOutcome()
}

type PassOutcome struct{}

type ReviewOutcome struct {
	reason string
}

type RejectOutcome struct {
	shortReason string
}

func (PassOutcome) Verdict() Verdict   { return VerdictPass }
func (ReviewOutcome) Verdict() Verdict { return VerdictReview }
func (RejectOutcome) Verdict() Verdict { return VerdictReject }

func (PassOutcome) isOutcome()   {}
func (ReviewOutcome) isOutcome() {}
func (RejectOutcome) isOutcome() {}

func (o ReviewOutcome) Reason() string      { return o.reason }
func (o RejectOutcome) ShortReason() string { return o.shortReason }

func NewReviewOutcome(reason string) (ReviewOutcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ReviewOutcome{}, ErrMissingReviewReason
	}
	return ReviewOutcome{reason: reason}, nil
}

func NewRejectOutcome(shortReason string) (RejectOutcome, error) {
	shortReason = strings.TrimSpace(shortReason)
	if shortReason == "" {
		return RejectOutcome{}, ErrMissingRejectReason
	}
	return RejectOutcome{shortReason: shortReason}, nil
}

// MustReject is for fixed, known non-empty reasons.
func MustReject(shortReason string) RejectOutcome {
	o, err := NewRejectOutcome(shortReason)
	if err != nil {
		panic(err)
	}
	return o
}

// NewOutcome builds an Outcome from the flat wire fields.
func NewOutcome(verdict Verdict, reviewReason, shortRejectReason string) (Outcome, error) {
	switch verdict {
	case VerdictPass:
		return PassOutcome{}, nil
	case VerdictReview:
		return NewReviewOutcome(reviewReason)
	case VerdictReject:
		return NewRejectOutcome(shortRejectReason)
	default:
		return nil, fmt.Errorf("unknown decision %q", verdict)
	}
}

// DetailedAnalysis holds the sub-score breakdown, each 0-100.
type DetailedAnalysis struct {
	TechnicalDepth       float64 `json:"technicalDepth"`
	LeadershipCapability float64 `json:"leadershipCapability"`
	CustomerFacing       float64 `json:"customerFacing"`
	CulturalFit          float64 `json:"culturalFit"`
	HandsOnCurrent       float64 `json:"handsOnCurrent"`
	BuilderDNA           float64 `json:"builderDNA"`
	StartupFit           float64 `json:"startupFit"`
	InnovationCurrency   float64 `json:"innovationCurrency"`
}

func (a DetailedAnalysis) Validate() error {
	dims := map[string]float64{
		"technicalDepth":       a.TechnicalDepth,
		"leadershipCapability": a.LeadershipCapability,
		"customerFacing":       a.CustomerFacing,
		"culturalFit":          a.CulturalFit,
		"handsOnCurrent":       a.HandsOnCurrent,
		"builderDNA":           a.BuilderDNA,
		"startupFit":           a.StartupFit,
		"innovationCurrency":   a.InnovationCurrency,
	}
	for name, v := range dims {
		if err := checkRange(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Decision is the primary-stage judgment, and after escalation the merged
// final decision. It is never mutated once built.
type Decision struct {
	Outcome                     Outcome
	OverallScore                float64
	Confidence                  float64
	Reasoning                   string
	Strengths                   []string
	Concerns                    []string
	RedFlags                    []string
	InterviewRecommendation     InterviewRecommendation
	DetailedAnalysis            DetailedAnalysis
	SuggestedInterviewQuestions []string
	SimilarToKnownCTOs          bool
	// EscalationReason keeps the primary REVIEW reason after a merge.
	EscalationReason string
}

func (d *Decision) Verdict() Verdict {
	if d == nil || d.Outcome == nil {
		return ""
	}
	return d.Outcome.Verdict()
}

// ShortRejectReason is empty unless the outcome is a REJECT.
func (d *Decision) ShortRejectReason() string {
	if o, ok := d.Outcome.(RejectOutcome); ok {
		return o.ShortReason()
	}
	return ""
}

func (d *Decision) ReviewReason() string {
	if o, ok := d.Outcome.(ReviewOutcome); ok {
		return o.Reason()
	}
	return ""
}

func (d *Decision) Validate() error {
	if d.Outcome == nil {
		return errors.New("decision is required")
	}
	if _, err := NewOutcome(d.Outcome.Verdict(), d.ReviewReason(), d.ShortRejectReason()); err != nil {
		return err
	}
	if err := checkRange("overallScore", d.OverallScore); err != nil {
		return err
	}
	if err := checkRange("confidence", d.Confidence); err != nil {
		return err
	}
	if strings.TrimSpace(d.Reasoning) == "" {
		return errors.New("reasoning must not be empty")
	}
	if len(d.Strengths) > maxListItems || len(d.Concerns) > maxListItems {
		return fmt.Errorf("strengths and concerns are limited to %d items", maxListItems)
	}
	if !d.InterviewRecommendation.Valid() {
		return fmt.Errorf("invalid interviewRecommendation %q", d.InterviewRecommendation)
	}
	return d.DetailedAnalysis.Validate()
}

// MergeSecondary produces the final decision: the escalation result
// overwrites the verdict, score, confidence and reasoning, while the lists
// from both stages are concatenated.
func (d *Decision) MergeSecondary(s *SecondaryEvaluation) *Decision {
	merged := &Decision{
		Outcome:                     s.Outcome,
		OverallScore:                s.UpdatedScore,
		Confidence:                  s.Confidence,
		Reasoning:                   s.Reasoning,
		Strengths:                   concat(d.Strengths, s.Strengths),
		Concerns:                    concat(d.Concerns, s.Concerns),
		RedFlags:                    concat(d.RedFlags, s.RedFlags),
		InterviewRecommendation:     d.InterviewRecommendation,
		DetailedAnalysis:            d.DetailedAnalysis,
		SuggestedInterviewQuestions: concat(d.SuggestedInterviewQuestions, nil),
		SimilarToKnownCTOs:          d.SimilarToKnownCTOs,
		EscalationReason:            d.ReviewReason(),
	}

	switch s.Outcome.(type) {
	case RejectOutcome:
		merged.InterviewRecommendation = RecommendationNotRecommended
	case PassOutcome:
		if merged.InterviewRecommendation == RecommendationNotRecommended {
			merged.InterviewRecommendation = RecommendationConsider
		}
	}
	return merged
}

type decisionJSON struct {
	SchemaVersion               int                     `json:"schemaVersion"`
	Decision                    Verdict                 `json:"decision"`
	Reasoning                   string                  `json:"reasoning"`
	OverallScore                float64                 `json:"overallScore"`
	Confidence                  float64                 `json:"confidence"`
	Strengths                   []string                `json:"strengths"`
	Concerns                    []string                `json:"concerns"`
	InterviewRecommendation     InterviewRecommendation `json:"interviewRecommendation"`
	DetailedAnalysis            DetailedAnalysis        `json:"detailedAnalysis"`
	RedFlags                    []string                `json:"redFlags,omitempty"`
	SuggestedInterviewQuestions []string                `json:"suggestedInterviewQuestions,omitempty"`
	ReviewReason                string                  `json:"reviewReason,omitempty"`
	SimilarToKnownCTOs          bool                    `json:"similarToKnownCTOs"`
	ShortRejectReason           string                  `json:"shortRejectReason,omitempty"`
	EscalationReason            string                  `json:"escalationReason,omitempty"`
}

func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(decisionJSON{
		SchemaVersion:               DecisionSchemaVersion,
		Decision:                    d.Verdict(),
		Reasoning:                   d.Reasoning,
		OverallScore:                d.OverallScore,
		Confidence:                  d.Confidence,
		Strengths:                   nonNil(d.Strengths),
		Concerns:                    nonNil(d.Concerns),
		InterviewRecommendation:     d.InterviewRecommendation,
		DetailedAnalysis:            d.DetailedAnalysis,
		RedFlags:                    d.RedFlags,
		SuggestedInterviewQuestions: d.SuggestedInterviewQuestions,
		ReviewReason:                d.ReviewReason(),
		SimilarToKnownCTOs:          d.SimilarToKnownCTOs,
		ShortRejectReason:           d.ShortRejectReason(),
		EscalationReason:            d.EscalationReason,
	})
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw decisionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	outcome, err := NewOutcome(raw.Decision, raw.ReviewReason, raw.ShortRejectReason)
	if err != nil {
		return err
	}
	*d = Decision{
		Outcome:                     outcome,
		OverallScore:                raw.OverallScore,
		Confidence:                  raw.Confidence,
		Reasoning:                   raw.Reasoning,
		Strengths:                   raw.Strengths,
		Concerns:                    raw.Concerns,
		RedFlags:                    raw.RedFlags,
		InterviewRecommendation:     raw.InterviewRecommendation,
		DetailedAnalysis:            raw.DetailedAnalysis,
		SuggestedInterviewQuestions: raw.SuggestedInterviewQuestions,
		SimilarToKnownCTOs:          raw.SimilarToKnownCTOs,
		EscalationReason:            raw.EscalationReason,
	}
	return nil
}

// SecondaryEvaluation is the escalation-stage output. Its outcome is
// binary: REVIEW is rejected at construction.
type SecondaryEvaluation struct {
	Outcome                      Outcome
	Reasoning                    string
	KeyFindings                  []string
	BuilderDNAEvidence           string
	InnovationCurrencyAssessment string
	OverqualificationAssessment  string
	PatternMatch                 string
	UpdatedScore                 float64
	Confidence                   float64
	Strengths                    []string
	Concerns                     []string
	RedFlags                     []string
}

func (s *SecondaryEvaluation) Verdict() Verdict {
	if s == nil || s.Outcome == nil {
		return ""
	}
	return s.Outcome.Verdict()
}

// NewFinalOutcome accepts only PASS or REJECT.
func NewFinalOutcome(verdict Verdict, shortRejectReason string) (Outcome, error) {
	switch verdict {
	case VerdictPass:
		return PassOutcome{}, nil
	case VerdictReject:
		return NewRejectOutcome(shortRejectReason)
	default:
		return nil, fmt.Errorf("finalDecision must be PASS or REJECT, got %q", verdict)
	}
}

func (s *SecondaryEvaluation) Validate() error {
	if s.Outcome == nil {
		return errors.New("finalDecision is required")
	}
	short := ""
	if o, ok := s.Outcome.(RejectOutcome); ok {
		short = o.ShortReason()
	}
	if _, err := NewFinalOutcome(s.Outcome.Verdict(), short); err != nil {
		return err
	}
	if err := checkRange("updatedScore", s.UpdatedScore); err != nil {
		return err
	}
	if err := checkRange("confidence", s.Confidence); err != nil {
		return err
	}
	if strings.TrimSpace(s.Reasoning) == "" {
		return errors.New("reasoning must not be empty")
	}
	return nil
}

type secondaryJSON struct {
	SchemaVersion                int      `json:"schemaVersion"`
	FinalDecision                Verdict  `json:"finalDecision"`
	Reasoning                    string   `json:"reasoning"`
	KeyFindings                  []string `json:"keyFindings"`
	BuilderDNAEvidence           string   `json:"builderDNAEvidence"`
	InnovationCurrencyAssessment string   `json:"innovationCurrencyAssessment"`
	OverqualificationAssessment  string   `json:"overqualificationAssessment"`
	PatternMatch                 string   `json:"patternMatch"`
	UpdatedScore                 float64  `json:"updatedScore"`
	Confidence                   float64  `json:"confidence"`
	ShortRejectReason            string   `json:"shortRejectReason,omitempty"`
	Strengths                    []string `json:"strengths,omitempty"`
	Concerns                     []string `json:"concerns,omitempty"`
	RedFlags                     []string `json:"redFlags,omitempty"`
}

func (s SecondaryEvaluation) MarshalJSON() ([]byte, error) {
	short := ""
	if o, ok := s.Outcome.(RejectOutcome); ok {
		short = o.ShortReason()
	}
	return json.Marshal(secondaryJSON{
		SchemaVersion:                DecisionSchemaVersion,
		FinalDecision:                s.Verdict(),
		Reasoning:                    s.Reasoning,
		KeyFindings:                  nonNil(s.KeyFindings),
		BuilderDNAEvidence:           s.BuilderDNAEvidence,
		InnovationCurrencyAssessment: s.InnovationCurrencyAssessment,
		OverqualificationAssessment:  s.OverqualificationAssessment,
		PatternMatch:                 s.PatternMatch,
		UpdatedScore:                 s.UpdatedScore,
		Confidence:                   s.Confidence,
		ShortRejectReason:            short,
		Strengths:                    s.Strengths,
		Concerns:                     s.Concerns,
		RedFlags:                     s.RedFlags,
	})
}

func (s *SecondaryEvaluation) UnmarshalJSON(data []byte) error {
	var raw secondaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	outcome, err := NewFinalOutcome(raw.FinalDecision, raw.ShortRejectReason)
	if err != nil {
		return err
	}
	*s = SecondaryEvaluation{
		Outcome:                      outcome,
		Reasoning:                    raw.Reasoning,
		KeyFindings:                  raw.KeyFindings,
		BuilderDNAEvidence:           raw.BuilderDNAEvidence,
		InnovationCurrencyAssessment: raw.InnovationCurrencyAssessment,
		OverqualificationAssessment:  raw.OverqualificationAssessment,
		PatternMatch:                 raw.PatternMatch,
		UpdatedScore:                 raw.UpdatedScore,
		Confidence:                   raw.Confidence,
		Strengths:                    raw.Strengths,
		Concerns:                     raw.Concerns,
		RedFlags:                     raw.RedFlags,
	}
	return nil
}

func checkRange(name string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be within 0-100, got %v", name, v)
	}
	return nil
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
