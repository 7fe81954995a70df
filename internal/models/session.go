package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

type TargetRole string

const (
	RoleCTO                TargetRole = "CTO"
	RoleVPEngineering      TargetRole = "VP_Engineering"
	RoleEngineeringManager TargetRole = "Engineering_Manager"
	RoleCustom             TargetRole = "Custom"
)

// ScreeningConfig parameterizes the evaluator prompts for one session.
type ScreeningConfig struct {
	EnableCompanyEnrichment  bool       `json:"enableCompanyEnrichment"`
	TargetRole               TargetRole `json:"targetRole"`
	TargetCountry            string     `json:"targetCountry,omitempty"`
	CustomCriteria           string     `json:"customCriteria,omitempty"`
	MinimumYearsExperience   int        `json:"minimumYearsExperience"`
	RequireVPOrAbove         bool       `json:"requireVPOrAbove"`
	RequireStartupExperience bool       `json:"requireStartupExperience"`
	Source                   string     `json:"source,omitempty"`
}

func DefaultScreeningConfig() ScreeningConfig {
	return ScreeningConfig{
		EnableCompanyEnrichment: true,
		TargetRole:              RoleCTO,
		MinimumYearsExperience:  7,
	}
}

// UnmarshalJSON decodes onto the defaults, so a partial config only
// overrides the fields it names.
func (c *ScreeningConfig) UnmarshalJSON(data []byte) error {
	type plain ScreeningConfig
	cfg := plain(DefaultScreeningConfig())
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	*c = ScreeningConfig(cfg)
	return nil
}

type ScreeningSession struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedBy           string         `gorm:"type:text" json:"created_by"`
	Config              datatypes.JSON `gorm:"type:jsonb" json:"config"`
	Status              SessionStatus  `gorm:"type:text;not null;default:'pending';index" json:"status"`
	TotalCandidates     int            `gorm:"not null;default:0" json:"total_candidates"`
	CandidatesProcessed int            `gorm:"not null;default:0" json:"candidates_processed"`
	PassedCandidates    int            `gorm:"not null;default:0" json:"passed_candidates"`
	RejectedCandidates  int            `gorm:"not null;default:0" json:"rejected_candidates"`
	ErroredCandidates   int            `gorm:"not null;default:0" json:"errored_candidates"`
	CountryID           *uuid.UUID     `gorm:"type:uuid;index" json:"country_id,omitempty"`
	StartedAt           *time.Time     `json:"started_at,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	CreatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	Country *Country `gorm:"foreignKey:CountryID" json:"country,omitempty"`
}

func (ScreeningSession) TableName() string {
	return "screening_sessions"
}

// ScreeningConfig decodes the stored config, falling back to defaults for
// an empty or unreadable blob.
func (s *ScreeningSession) ScreeningConfig() ScreeningConfig {
	cfg := DefaultScreeningConfig()
	if len(s.Config) == 0 {
		return cfg
	}
	if err := json.Unmarshal(s.Config, &cfg); err != nil {
		return DefaultScreeningConfig()
	}
	return cfg
}

// SessionError is the operator-facing record of one failed candidate run.
type SessionError struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ScreeningSessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"screening_session_id"`
	CandidateID        uuid.UUID `gorm:"type:uuid;not null;index" json:"candidate_id"`
	ErrorMessage       string    `gorm:"type:text" json:"error_message"`
	ErrorStack         string    `gorm:"type:text" json:"-"`
	CreatedAt          time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SessionError) TableName() string {
	return "session_errors"
}
