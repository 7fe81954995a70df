package services

import (
	"strings"

	"alfredoptarigan/cto-screener/internal/models"
)

var countryAliases = map[string]string{
	"usa":                       "United States",
	"u.s.":                      "United States",
	"u.s.a.":                    "United States",
	"us":                        "United States",
	"united states of america":  "United States",
	"america":                   "United States",
	"uk":                        "United Kingdom",
	"u.k.":                      "United Kingdom",
	"great britain":             "United Kingdom",
	"britain":                   "United Kingdom",
	"england":                   "United Kingdom",
	"scotland":                  "United Kingdom",
	"wales":                     "United Kingdom",
	"northern ireland":          "United Kingdom",
	"holland":                   "Netherlands",
	"the netherlands":           "Netherlands",
	"czechia":                   "Czech Republic",
	"czech":                     "Czech Republic",
	"uae":                       "United Arab Emirates",
	"u.a.e.":                    "United Arab Emirates",
	"dubai":                     "United Arab Emirates",
	"abu dhabi":                 "United Arab Emirates",
	"deutschland":               "Germany",
	"espana":                    "Spain",
	"españa":                    "Spain",
	"italia":                    "Italy",
	"brasil":                    "Brazil",
	"russian federation":        "Russia",
	"south korea":               "South Korea",
	"republic of korea":         "South Korea",
	"korea":                     "South Korea",
	"hong kong sar":             "Hong Kong",
	"taiwan, province of china": "Taiwan",
	"viet nam":                  "Vietnam",
}

var knownCountries = []string{
	"Afghanistan", "Albania", "Algeria", "Andorra", "Angola", "Argentina", "Armenia",
	"Australia", "Austria", "Azerbaijan", "Bahrain", "Bangladesh", "Belarus", "Belgium",
	"Bolivia", "Bosnia and Herzegovina", "Brazil", "Brunei", "Bulgaria", "Cambodia",
	"Cameroon", "Canada", "Chile", "China", "Colombia", "Costa Rica", "Croatia",
	"Cuba", "Cyprus", "Czech Republic", "Denmark", "Dominican Republic", "Ecuador",
	"Egypt", "El Salvador", "Estonia", "Ethiopia", "Finland", "France", "Georgia",
	"Germany", "Ghana", "Greece", "Guatemala", "Honduras", "Hong Kong", "Hungary",
	"Iceland", "India", "Indonesia", "Iran", "Iraq", "Ireland", "Israel", "Italy",
	"Jamaica", "Japan", "Jordan", "Kazakhstan", "Kenya", "Kuwait", "Laos", "Latvia",
	"Lebanon", "Libya", "Lithuania", "Luxembourg", "Macau", "Malaysia", "Malta",
	"Mauritius", "Mexico", "Moldova", "Monaco", "Mongolia", "Montenegro", "Morocco",
	"Myanmar", "Nepal", "Netherlands", "New Zealand", "Nicaragua", "Nigeria", "Norway",
	"Oman", "Pakistan", "Palestine", "Panama", "Paraguay", "Peru", "Philippines",
	"Poland", "Portugal", "Puerto Rico", "Qatar", "Romania", "Russia", "Saudi Arabia",
	"Senegal", "Serbia", "Singapore", "Slovakia", "Slovenia", "South Africa",
	"South Korea", "Spain", "Sri Lanka", "Sweden", "Switzerland", "Syria", "Taiwan",
	"Thailand", "Tunisia", "Turkey", "Ukraine", "United Arab Emirates", "United Kingdom",
	"United States", "Uruguay", "Uzbekistan", "Venezuela", "Vietnam", "Yemen", "Zimbabwe",
}

var (
	knownCountryIndex = make(map[string]string, len(knownCountries))
	knownCountrySet   = make(map[string]bool, len(knownCountries))
)

func init() {
	for _, c := range knownCountries {
		knownCountryIndex[strings.ToLower(c)] = c
		knownCountrySet[c] = true
	}
}

// lookupCountry matches one location segment against the alias table, then
// the known-country set. Both are case-insensitive.
func lookupCountry(part string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(part))
	if c, ok := countryAliases[key]; ok {
		return c, true
	}
	if c, ok := knownCountryIndex[key]; ok {
		return c, true
	}
	return "", false
}

// NormalizeCountryName maps a country string onto its canonical name, or
// title-cases it when it is not recognized.
func NormalizeCountryName(country string) string {
	trimmed := strings.TrimSpace(country)
	if c, ok := lookupCountry(trimmed); ok {
		return c
	}
	return titleCase(trimmed)
}

// DetectCountry extracts a country from a free-text location such as
// "Berlin, Germany". Segments are scanned right to left. It returns "" when
// nothing matches; callers treat that as unknown, not as an error.
func DetectCountry(location string) string {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return ""
	}

	var parts []string
	for _, p := range strings.Split(trimmed, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if c, ok := lookupCountry(parts[i]); ok {
			return c
		}
	}

	if len(parts) == 1 {
		normalized := NormalizeCountryName(parts[0])
		if knownCountrySet[normalized] {
			return normalized
		}
	}

	return ""
}

// ExtractCountryFromProfile tries the profile's location fields from most to
// least reliable and returns the first resolution. The order favors
// precision: country-only, full address, generic location, job location.
func ExtractCountryFromProfile(p *models.LinkedInProfile) string {
	if p == nil {
		return ""
	}
	for _, field := range []string{p.AddressCountryOnly, p.AddressWithCountry, p.Location, p.JobLocation} {
		if c := DetectCountry(field); c != "" {
			return c
		}
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(strings.ToLower(w))
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
