package services

import (
	"regexp"
	"strings"
)

const profileURLTemplate = "https://www.linkedin.com/in/"

var profileIDPattern = regexp.MustCompile(`(?i)linkedin\.com/in/([^/?#]+)`)

type URLValidation struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// NormalizeProfileURLs canonicalizes and deduplicates profile URLs. Entries
// without a profile path are returned in Invalid unchanged; blank entries are
// dropped. Canonical URLs are fixed points of this function.
func NormalizeProfileURLs(urls []string) URLValidation {
	result := URLValidation{Valid: []string{}, Invalid: []string{}}
	seen := make(map[string]bool)

	for _, raw := range urls {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}

		id, ok := ProfileID(url)
		if !ok {
			result.Invalid = append(result.Invalid, url)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		result.Valid = append(result.Valid, profileURLTemplate+id)
	}

	return result
}

// CanonicalProfileURL returns the canonical form of one URL, or "" if it is
// not a profile URL.
func CanonicalProfileURL(url string) string {
	id, ok := ProfileID(url)
	if !ok {
		return ""
	}
	return profileURLTemplate + id
}

// ProfileID extracts the lower-cased profile identifier.
func ProfileID(url string) (string, bool) {
	normalized := strings.TrimSpace(url)
	lower := strings.ToLower(normalized)
	switch {
	case strings.HasPrefix(lower, "https://"):
	case strings.HasPrefix(lower, "http://"):
		normalized = "https://" + normalized[len("http://"):]
	default:
		normalized = "https://" + normalized
	}

	if !strings.Contains(strings.ToLower(normalized), "linkedin.com/in/") {
		return "", false
	}
	match := profileIDPattern.FindStringSubmatch(normalized)
	if match == nil {
		return "", false
	}
	return strings.ToLower(match[1]), true
}
