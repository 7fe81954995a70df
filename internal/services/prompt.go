package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"alfredoptarigan/cto-screener/internal/models"
)

// CandidateBundle is everything the evaluators know about one candidate.
type CandidateBundle struct {
	Profile   *models.LinkedInProfile
	Language  *models.LanguageCheck
	Companies []models.EnrichedCompany
	Config    models.ScreeningConfig
}

type PromptBuilder struct {
	policy *EvaluationPolicy
}

func NewPromptBuilder(policy *EvaluationPolicy) *PromptBuilder {
	if policy == nil {
		policy = MustDefaultPolicy()
	}
	return &PromptBuilder{policy: policy}
}

type experiencePayload struct {
	Title           string `json:"title"`
	CompanyName     string `json:"companyName"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Description     string `json:"description"`
	CompanySize     string `json:"companySize,omitempty"`
	CompanyIndustry string `json:"companyIndustry,omitempty"`
}

type educationPayload struct {
	DegreeName   string `json:"degreeName"`
	FieldOfStudy string `json:"fieldOfStudy"`
	SchoolName   string `json:"schoolName"`
}

type languagePayload struct {
	English        string   `json:"english"`
	EnglishLevel   string   `json:"englishLevel"`
	Native         string   `json:"native"`
	NativeLanguage string   `json:"nativeLanguage"`
	Reasoning      string   `json:"reasoning"`
	Confidence     int      `json:"confidence"`
	Notes          string   `json:"notes"`
	Provenance     []string `json:"provenance,omitempty"`
}

type companyPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Website     string `json:"website,omitempty"`
}

type criteriaPayload struct {
	TargetRole               models.TargetRole `json:"targetRole"`
	TargetCountry            string            `json:"targetCountry,omitempty"`
	MinimumYearsExperience   int               `json:"minimumYearsExperience"`
	RequireVPOrAbove         bool              `json:"requireVPOrAbove"`
	RequireStartupExperience bool              `json:"requireStartupExperience"`
	CustomCriteria           string            `json:"customCriteria,omitempty"`
}

type evaluationPayload struct {
	CandidateName      string              `json:"candidateName"`
	CurrentRole        string              `json:"currentRole"`
	Company            string              `json:"company"`
	Location           string              `json:"location"`
	LanguageCheck      *languagePayload    `json:"languageCheck,omitempty"`
	CompanyContext     []companyPayload    `json:"companyContext"`
	Headline           string              `json:"headline"`
	About              string              `json:"about"`
	Experience         []experiencePayload `json:"experience"`
	Education          []educationPayload  `json:"education"`
	Skills             []string            `json:"skills"`
	ScreeningCriteria  criteriaPayload     `json:"screeningCriteria"`
	CalibrationContext string              `json:"calibrationContext,omitempty"`
	Languages          []models.Language   `json:"languages,omitempty"`
	InitialEvaluation  *initialEvalPayload `json:"initialEvaluation,omitempty"`
}

type initialEvalPayload struct {
	Score            float64                 `json:"score"`
	Concerns         []string                `json:"concerns"`
	Strengths        []string                `json:"strengths"`
	DetailedAnalysis models.DetailedAnalysis `json:"detailedAnalysis"`
	ReviewReason     string                  `json:"reviewReason"`
}

// BuildPrimaryPrompt returns the system policy and the JSON payload for the
// first evaluation stage.
func (pb *PromptBuilder) BuildPrimaryPrompt(b CandidateBundle, calibration string) (string, string, error) {
	payload := pb.basePayload(b, false)
	payload.CalibrationContext = calibration

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode evaluation payload: %w", err)
	}
	return pb.policy.withInstruction(pb.policy.Primary), string(raw), nil
}

// BuildSecondaryPrompt fills the escalation policy with the initial decision
// and adds it to the payload.
func (pb *PromptBuilder) BuildSecondaryPrompt(b CandidateBundle, initial *models.Decision) (string, string, error) {
	payload := pb.basePayload(b, true)
	payload.LanguageCheck = nil
	payload.Languages = b.Profile.Languages
	payload.InitialEvaluation = &initialEvalPayload{
		Score:            initial.OverallScore,
		Concerns:         nonEmpty(initial.Concerns),
		Strengths:        nonEmpty(initial.Strengths),
		DetailedAnalysis: initial.DetailedAnalysis,
		ReviewReason:     initial.ReviewReason(),
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode escalation payload: %w", err)
	}

	reviewReason := initial.ReviewReason()
	if reviewReason == "" {
		reviewReason = "Borderline score with mixed signals"
	}
	system := strings.NewReplacer(
		"{{REVIEW_REASON}}", reviewReason,
		"{{INITIAL_SCORE}}", strconv.FormatFloat(initial.OverallScore, 'f', -1, 64),
		"{{INITIAL_CONCERNS}}", joinOr(initial.Concerns, "None specified"),
		"{{INITIAL_STRENGTHS}}", joinOr(initial.Strengths, "None specified"),
	).Replace(pb.policy.Secondary)

	return pb.policy.withInstruction(system), string(raw), nil
}

func (pb *PromptBuilder) basePayload(b CandidateBundle, detailed bool) evaluationPayload {
	p := b.Profile

	payload := evaluationPayload{
		CandidateName:  p.DisplayName(),
		CurrentRole:    orUnknown(p.JobTitle),
		Company:        orUnknown(p.CompanyName),
		Location:       orUnknown(p.AddressCountryOnly),
		LanguageCheck:  languageSummary(b.Language),
		CompanyContext: make([]companyPayload, 0, len(b.Companies)),
		Headline:       p.Headline,
		About:          p.About,
		Experience:     make([]experiencePayload, 0, len(p.Experiences)),
		Education:      make([]educationPayload, 0, len(p.Educations)),
		Skills:         make([]string, 0, len(p.Skills)),
		ScreeningCriteria: criteriaPayload{
			TargetRole:               b.Config.TargetRole,
			TargetCountry:            b.Config.TargetCountry,
			MinimumYearsExperience:   b.Config.MinimumYearsExperience,
			RequireVPOrAbove:         b.Config.RequireVPOrAbove,
			RequireStartupExperience: b.Config.RequireStartupExperience,
			CustomCriteria:           b.Config.CustomCriteria,
		},
	}

	for _, c := range b.Companies {
		payload.CompanyContext = append(payload.CompanyContext, companyPayload{
			Name:        c.Name,
			Description: c.Description,
			Website:     c.Website,
		})
	}

	for _, exp := range p.Experiences {
		ep := experiencePayload{
			Title:       exp.Title,
			CompanyName: exp.CompanyName,
			StartDate:   exp.JobStartedOn,
			EndDate:     exp.JobEndedOn,
			Description: exp.JobDescription,
		}
		if ep.EndDate == "" {
			ep.EndDate = "Present"
		}
		if detailed {
			ep.CompanySize = exp.CompanySize
			ep.CompanyIndustry = exp.CompanyIndustry
		}
		payload.Experience = append(payload.Experience, ep)
	}

	for _, edu := range p.Educations {
		payload.Education = append(payload.Education, educationPayload{
			DegreeName:   edu.Degree(),
			FieldOfStudy: edu.FieldOfStudy,
			SchoolName:   edu.School(),
		})
	}

	for _, s := range p.Skills {
		payload.Skills = append(payload.Skills, s.Label())
	}

	return payload
}

func languageSummary(lc *models.LanguageCheck) *languagePayload {
	if lc == nil {
		return nil
	}
	notes := "Language proficiency explicitly stated in profile"
	if lc.EnglishInferred || lc.NativeInferred {
		notes = "Language proficiency was inferred from profile context and location"
	}
	return &languagePayload{
		English:        passFail(lc.HasEnglishProficiency),
		EnglishLevel:   lc.EnglishLevel,
		Native:         passFail(lc.HasNativeLanguageProficiency),
		NativeLanguage: lc.NativeLanguage,
		Reasoning:      lc.Reasoning,
		Confidence:     lc.Confidence,
		Notes:          notes,
		Provenance:     lc.Notes,
	}
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func nonEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
