package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type UploadRequest struct {
	Profiles  []map[string]any `json:"profiles"`
	Config    *ScreeningConfig `json:"config,omitempty"`
	CreatedBy string           `json:"created_by"`
	CountryID *uuid.UUID       `json:"country_id,omitempty"`
}

type UploadResponse struct {
	SessionID         string   `json:"session_id"`
	TotalCandidates   int      `json:"total_candidates"`
	Skipped           int      `json:"skipped"`
	CountriesDetected []string `json:"countries_detected"`
	ArchiveKey        string   `json:"archive_key,omitempty"`
}

type ScrapeRequest struct {
	URLs      []string         `json:"urls"`
	Config    *ScreeningConfig `json:"config,omitempty"`
	CreatedBy string           `json:"created_by"`
}

type ScrapeResponse struct {
	UploadResponse
	Scraped     int      `json:"scraped"`
	FailedURLs  []string `json:"failed_urls"`
	InvalidURLs []string `json:"invalid_urls"`
}

type CorrectionRequest struct {
	CandidateID string         `json:"candidate_id"`
	NewDecision DecisionResult `json:"new_decision"`
	Reason      string         `json:"reason"`
	CorrectedBy string         `json:"corrected_by"`
}

// CorrectionFilter narrows the corrections listing. Zero values match all.
type CorrectionFilter struct {
	Name     string
	DateFrom *time.Time
	DateTo   *time.Time
	Decision DecisionResult
}

type CorrectionEntry struct {
	CandidateID        string          `json:"candidate_id"`
	ScreeningSessionID string          `json:"screening_session_id"`
	FullName           string          `json:"full_name"`
	LinkedinURL        string          `json:"linkedin_url"`
	CurrentTitle       string          `json:"current_title"`
	CurrentCompany     string          `json:"current_company"`
	Override           *ManualOverride `json:"override"`
	Profile            json.RawMessage `json:"profile,omitempty"`
}

type CorrectionSummary struct {
	Total         int               `json:"total"`
	ByNewDecision map[string]int    `json:"by_new_decision"`
	Corrections   []CorrectionEntry `json:"corrections"`
}

type CountryRequest struct {
	Name string `json:"name"`
}

type BackfillStats struct {
	CandidatesScanned int      `json:"candidates_scanned"`
	CandidatesUpdated int      `json:"candidates_updated"`
	CandidatesSkipped int      `json:"candidates_skipped"`
	OrphansDeleted    []string `json:"orphan_countries_deleted"`
}

type BackfillReport struct {
	Stats     *BackfillStats      `json:"stats,omitempty"`
	Pending   int64               `json:"candidates_without_country"`
	Orphans   []string            `json:"orphan_countries"`
	Countries []CountryWithCounts `json:"countries"`
}

// CandidateFilter narrows candidate listings. Zero values match all.
type CandidateFilter struct {
	SessionID *uuid.UUID
	CountryID *uuid.UUID
	Decision  DecisionResult
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
	Offset    int
	Limit     int
}

type CountryDetail struct {
	Country    Country                `json:"country"`
	Stats      map[DecisionResult]int `json:"stats"`
	PassRate   int                    `json:"pass_rate"`
	Candidates []CandidateEvaluation  `json:"candidates"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
	HasMore    bool                   `json:"has_more"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type SessionDetail struct {
	Session     *ScreeningSession     `json:"session"`
	Evaluations []CandidateEvaluation `json:"evaluations"`
}

type FilterOptions struct {
	Countries []Country `json:"countries"`
	Companies []string  `json:"companies"`
}
