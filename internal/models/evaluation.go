package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProfileSchemaVersion tags the raw payload layout stored in ProfileData.
const ProfileSchemaVersion = 1

type DecisionResult string

const (
	DecisionPending    DecisionResult = "PENDING"
	DecisionInProgress DecisionResult = "IN_PROGRESS"
	DecisionPass       DecisionResult = "PASS"
	DecisionReject     DecisionResult = "REJECT"
	DecisionErrored    DecisionResult = "ERRORED"
)

// Unfinished reports whether the candidate still needs a pipeline run.
func (d DecisionResult) Unfinished() bool {
	return d == DecisionPending || d == DecisionInProgress
}

// ResultFor maps a terminal verdict onto the persisted result. REVIEW never
// reaches storage; anything other than PASS is stored as REJECT.
func ResultFor(v Verdict) DecisionResult {
	if v == VerdictPass {
		return DecisionPass
	}
	return DecisionReject
}

type CandidateEvaluation struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ScreeningSessionID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_session_candidate" json:"screening_session_id"`
	CandidateID          string         `gorm:"type:text;not null;uniqueIndex:idx_session_candidate" json:"candidate_id"`
	LinkedinURL          string         `gorm:"type:text" json:"linkedin_url"`
	FullName             string         `gorm:"type:text;index" json:"full_name"`
	CurrentTitle         string         `gorm:"type:text" json:"current_title"`
	CurrentCompany       string         `gorm:"type:text" json:"current_company"`
	Location             string         `gorm:"type:text" json:"location"`
	CountryID            *uuid.UUID     `gorm:"type:uuid;index" json:"country_id,omitempty"`
	ProfileData          datatypes.JSON `gorm:"type:jsonb" json:"profile_data"`
	ProfileSchemaVersion int            `gorm:"not null;default:1" json:"profile_schema_version"`
	DecisionResult       DecisionResult `gorm:"type:text;not null;default:'PENDING';index" json:"decision_result"`
	OverallScore         *float64       `json:"overall_score,omitempty"`
	LanguageCheck        datatypes.JSON `gorm:"type:jsonb" json:"language_check,omitempty"`
	EnrichedCompanies    datatypes.JSON `gorm:"type:jsonb" json:"enriched_companies,omitempty"`
	FinalDecision        datatypes.JSON `gorm:"type:jsonb" json:"final_decision,omitempty"`
	SecondaryEvaluation  datatypes.JSON `gorm:"type:jsonb" json:"secondary_evaluation,omitempty"`
	ShortRejectReason    *string        `gorm:"type:text" json:"short_reject_reason,omitempty"`
	ManualOverride       datatypes.JSON `gorm:"type:jsonb" json:"manual_override,omitempty"`
	ProcessingTimeMs     *int64         `json:"processing_time_ms,omitempty"`
	EvaluatedAt          *time.Time     `json:"evaluated_at,omitempty"`
	ClaimedAt            *time.Time     `json:"-"`
	CreatedAt            time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	Country *Country `gorm:"foreignKey:CountryID" json:"country,omitempty"`
}

func (CandidateEvaluation) TableName() string {
	return "candidate_evaluations"
}

// Profile returns the typed view of the raw payload.
func (c *CandidateEvaluation) Profile() (*LinkedInProfile, error) {
	return ParseProfile(c.ProfileData)
}

// Decision decodes the persisted final decision, or nil when the candidate
// has not been evaluated.
func (c *CandidateEvaluation) Decision() (*Decision, error) {
	if len(c.FinalDecision) == 0 || string(c.FinalDecision) == "null" {
		return nil, nil
	}
	var d Decision
	if err := json.Unmarshal(c.FinalDecision, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *CandidateEvaluation) Language() (*LanguageCheck, error) {
	if len(c.LanguageCheck) == 0 || string(c.LanguageCheck) == "null" {
		return nil, nil
	}
	var l LanguageCheck
	if err := json.Unmarshal(c.LanguageCheck, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *CandidateEvaluation) Override() (*ManualOverride, error) {
	if len(c.ManualOverride) == 0 || string(c.ManualOverride) == "null" {
		return nil, nil
	}
	var o ManualOverride
	if err := json.Unmarshal(c.ManualOverride, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// EvaluationOutcome is everything one successful pipeline run writes back.
type EvaluationOutcome struct {
	LanguageCheck     *LanguageCheck
	EnrichedCompanies []EnrichedCompany
	Decision          *Decision
	Secondary         *SecondaryEvaluation
	ProcessingTime    time.Duration
}

func (o *EvaluationOutcome) Result() DecisionResult {
	return ResultFor(o.Decision.Verdict())
}

// ManualOverride records a human correction together with the candidate
// state it replaced.
type ManualOverride struct {
	OriginalDecision DecisionResult   `json:"originalDecision"`
	NewDecision      DecisionResult   `json:"newDecision"`
	Reason           string           `json:"reason"`
	CorrectedBy      string           `json:"correctedBy"`
	CorrectedAt      time.Time        `json:"correctedAt"`
	Snapshot         OverrideSnapshot `json:"snapshot"`
}

type OverrideSnapshot struct {
	OverallScore      *float64        `json:"overallScore,omitempty"`
	ShortRejectReason *string         `json:"shortRejectReason,omitempty"`
	FinalDecision     json.RawMessage `json:"finalDecision,omitempty"`
}
