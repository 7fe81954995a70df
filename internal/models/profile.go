package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LinkedInProfile is the typed view over a raw scraped profile. Parsing is
// lenient: unknown fields are ignored and fields of the wrong type are
// treated as absent. The raw document itself is stored untouched.
type LinkedInProfile struct {
	LinkedinURL        string
	FirstName          string
	LastName           string
	FullName           string
	Headline           string
	JobTitle           string
	JobLocation        string
	CompanyName        string
	CompanyWebsite     string
	CompanySize        string
	CompanyIndustry    string
	AddressCountryOnly string
	AddressWithCountry string
	Location           string
	About              string
	Experiences        []Experience
	Educations         []Education
	Skills             []Skill
	Languages          []Language
}

type Experience struct {
	CompanyName     string
	CompanySize     string
	CompanyWebsite  string
	CompanyIndustry string
	Title           string
	JobDescription  string
	JobStartedOn    string
	JobEndedOn      string
	JobStillWorking bool
	JobLocation     string
}

type Education struct {
	SchoolName   string
	DegreeName   string
	FieldOfStudy string
	StartedOn    string
	EndedOn      string
	Title        string
	Subtitle     string
}

// School returns the institution name across both scraper layouts.
func (e Education) School() string {
	return firstNonEmpty(e.SchoolName, e.Title)
}

func (e Education) Degree() string {
	return firstNonEmpty(e.DegreeName, e.Subtitle)
}

type Skill struct {
	Name  string
	Title string
}

func (s Skill) Label() string {
	return firstNonEmpty(s.Name, s.Title, "Unknown")
}

type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency,omitempty"`
}

// DisplayName falls back to first + last name.
func (p *LinkedInProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// CurrentTitle prefers the top-level job title, then the headline.
func (p *LinkedInProfile) CurrentTitle() string {
	if p.JobTitle != "" {
		return p.JobTitle
	}
	if len(p.Experiences) > 0 && p.Experiences[0].Title != "" {
		return p.Experiences[0].Title
	}
	return p.Headline
}

func (p *LinkedInProfile) CurrentCompany() string {
	if p.CompanyName != "" {
		return p.CompanyName
	}
	if len(p.Experiences) > 0 {
		return p.Experiences[0].CompanyName
	}
	return ""
}

// DisplayLocation is the most specific free-text location available.
func (p *LinkedInProfile) DisplayLocation() string {
	return firstNonEmpty(p.AddressWithCountry, p.Location, p.AddressCountryOnly, p.JobLocation)
}

// HasProfessionalSignal is true when anything marks the profile as a working
// professional.
func (p *LinkedInProfile) HasProfessionalSignal() bool {
	return p.JobTitle != "" || p.Headline != "" || len(p.Experiences) > 0
}

// ParseProfile decodes a raw profile document into its typed view.
func ParseProfile(raw []byte) (*LinkedInProfile, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return ProfileFromMap(doc), nil
}

func ProfileFromMap(doc map[string]any) *LinkedInProfile {
	p := &LinkedInProfile{
		LinkedinURL:        str(doc, "linkedinUrl"),
		FirstName:          str(doc, "firstName"),
		LastName:           str(doc, "lastName"),
		FullName:           str(doc, "fullName"),
		Headline:           str(doc, "headline"),
		JobTitle:           str(doc, "jobTitle"),
		JobLocation:        str(doc, "jobLocation"),
		CompanyName:        str(doc, "companyName"),
		CompanyWebsite:     str(doc, "companyWebsite"),
		CompanySize:        str(doc, "companySize"),
		CompanyIndustry:    str(doc, "companyIndustry"),
		AddressCountryOnly: str(doc, "addressCountryOnly"),
		AddressWithCountry: str(doc, "addressWithCountry"),
		Location:           str(doc, "location"),
		About:              str(doc, "about"),
	}
	if p.LinkedinURL == "" {
		p.LinkedinURL = str(doc, "linkedinPublicUrl")
	}

	for _, e := range objects(doc, "experiences") {
		p.Experiences = append(p.Experiences, Experience{
			CompanyName:     str(e, "companyName"),
			CompanySize:     str(e, "companySize"),
			CompanyWebsite:  str(e, "companyWebsite"),
			CompanyIndustry: str(e, "companyIndustry"),
			Title:           str(e, "title"),
			JobDescription:  str(e, "jobDescription"),
			JobStartedOn:    str(e, "jobStartedOn"),
			JobEndedOn:      str(e, "jobEndedOn"),
			JobStillWorking: boolean(e, "jobStillWorking"),
			JobLocation:     str(e, "jobLocation"),
		})
	}
	for _, e := range objects(doc, "educations") {
		p.Educations = append(p.Educations, Education{
			SchoolName:   str(e, "schoolName"),
			DegreeName:   str(e, "degreeName"),
			FieldOfStudy: str(e, "fieldOfStudy"),
			StartedOn:    str(e, "startedOn"),
			EndedOn:      str(e, "endedOn"),
			Title:        str(e, "title"),
			Subtitle:     str(e, "subtitle"),
		})
	}
	for _, s := range objects(doc, "skills") {
		p.Skills = append(p.Skills, Skill{Name: str(s, "name"), Title: str(s, "title")})
	}
	for _, l := range objects(doc, "languages") {
		name := str(l, "name")
		if name == "" {
			continue
		}
		p.Languages = append(p.Languages, Language{Name: name, Proficiency: str(l, "proficiency")})
	}
	return p
}

// SanitizeProfile strips NUL characters, which postgres rejects in jsonb,
// from every string in the document.
func SanitizeProfile(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "\x00", "")
	case []any:
		for i := range t {
			t[i] = SanitizeProfile(t[i])
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = SanitizeProfile(val)
		}
		return t
	default:
		return v
	}
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	default:
		return ""
	}
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func objects(m map[string]any, key string) []map[string]any {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
