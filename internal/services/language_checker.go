package services

import (
	"fmt"
	"strings"

	"alfredoptarigan/cto-screener/internal/models"
)

const (
	levelListedWithoutLevel = "Inferred Professional (listed without level)"
	levelFromContext        = "Inferred Professional (from profile context)"
	levelAssumed            = "Assumed (insufficient data, requires verification)"
	nativeSkipped           = "Unknown (Skipped)"

	penaltyAssumedEnglish  = 20
	penaltyInferredEnglish = 10
	penaltyInferredNative  = 10
)

// languageAliases maps endonyms and transliterations to lower-case English
// language names.
var languageAliases = map[string]string{
	"anglais":  "english",
	"inglés":   "english",
	"ingles":   "english",
	"inglese":  "english",
	"englisch": "english",

	"français":   "french",
	"francais":   "french",
	"español":    "spanish",
	"espanol":    "spanish",
	"castellano": "spanish",
	"deutsch":    "german",
	"italiano":   "italian",
	"português":  "portuguese",
	"portugues":  "portuguese",
	"nederlands": "dutch",
	"vlaams":     "dutch",
	"flemish":    "dutch",

	"svenska":  "swedish",
	"norsk":    "norwegian",
	"dansk":    "danish",
	"suomi":    "finnish",
	"íslenska": "icelandic",

	"ελληνικά":       "greek",
	"ellinika":       "greek",
	"česky":          "czech",
	"cesky":          "czech",
	"čeština":        "czech",
	"cestina":        "czech",
	"polski":         "polish",
	"magyar":         "hungarian",
	"română":         "romanian",
	"romana":         "romanian",
	"български":      "bulgarian",
	"български език": "bulgarian",
	"українська":     "ukrainian",
	"русский":        "russian",
	"русский язык":   "russian",
	"russkiy":        "russian",
	"srpski":         "serbian",
	"hrvatski":       "croatian",
	"slovenščina":    "slovenian",
	"slovenčina":     "slovak",

	"中文":        "chinese",
	"zhongwen":  "chinese",
	"mandarin":  "chinese",
	"cantonese": "chinese",
	"普通话":       "chinese",
	"廣東話":       "chinese",
	"日本語":       "japanese",
	"nihongo":   "japanese",
	"한국어":       "korean",
	"hangugeo":  "korean",

	"tiếng việt":       "vietnamese",
	"bahasa indonesia": "indonesian",
	"bahasa melayu":    "malay",
	"ภาษาไทย":          "thai",
	"phasa thai":       "thai",
	"filipino":         "tagalog",
	"မြန်မာဘာသာ":       "burmese",

	"हिन्दी":  "hindi",
	"हिंदी":   "hindi",
	"বাংলা":   "bengali",
	"اردو":    "urdu",
	"தமிழ்":   "tamil",
	"తెలుగు":  "telugu",
	"ગુજરાતી": "gujarati",
	"ಕನ್ನಡ":   "kannada",
	"മലയാളം":  "malayalam",
	"मराठी":   "marathi",
	"ਪੰਜਾਬੀ":  "punjabi",

	"العربية": "arabic",
	"عربي":    "arabic",
	"عربی":    "arabic",
	"עברית":   "hebrew",
	"ivrit":   "hebrew",
	"فارسی":   "persian",
	"farsi":   "persian",
	"türkçe":  "turkish",
	"turkce":  "turkish",

	"kiswahili": "swahili",
}

// countryLanguages lists the languages accepted as native for a country.
// Matching any one entry satisfies the requirement.
var countryLanguages = map[string][]string{
	"France":         {"French"},
	"Germany":        {"German"},
	"Italy":          {"Italian"},
	"Spain":          {"Spanish"},
	"Portugal":       {"Portuguese"},
	"Netherlands":    {"Dutch"},
	"Belgium":        {"Dutch", "French", "German"},
	"Switzerland":    {"German", "French", "Italian"},
	"Austria":        {"German"},
	"Luxembourg":     {"Luxembourgish", "French", "German"},
	"Ireland":        {"English"},
	"United Kingdom": {"English"},
	"UK":             {"English"},

	"Sweden":  {"Swedish"},
	"Norway":  {"Norwegian"},
	"Denmark": {"Danish"},
	"Finland": {"Finnish"},
	"Iceland": {"Icelandic"},

	"Poland":         {"Polish"},
	"Czechia":        {"Czech"},
	"Czech Republic": {"Czech"},
	"Slovakia":       {"Slovak"},
	"Hungary":        {"Hungarian"},
	"Romania":        {"Romanian"},
	"Bulgaria":       {"Bulgarian"},
	"Greece":         {"Greek"},
	"Croatia":        {"Croatian"},
	"Serbia":         {"Serbian"},
	"Slovenia":       {"Slovenian"},
	"Estonia":        {"Estonian"},
	"Latvia":         {"Latvian"},
	"Lithuania":      {"Lithuanian"},
	"Ukraine":        {"Ukrainian"},
	"Russia":         {"Russian"},
	"Belarus":        {"Belarusian"},

	"United States": {"English"},
	"USA":           {"English"},
	"Canada":        {"English", "French"},
	"Mexico":        {"Spanish"},
	"Brazil":        {"Portuguese"},
	"Argentina":     {"Spanish"},
	"Chile":         {"Spanish"},
	"Colombia":      {"Spanish"},
	"Peru":          {"Spanish"},
	"Venezuela":     {"Spanish"},

	"Israel":               {"Hebrew"},
	"Turkey":               {"Turkish"},
	"Saudi Arabia":         {"Arabic"},
	"United Arab Emirates": {"Arabic"},
	"UAE":                  {"Arabic"},
	"Jordan":               {"Arabic"},
	"Lebanon":              {"Arabic"},
	"Iran":                 {"Persian"},
	"Iraq":                 {"Arabic"},
	"Kuwait":               {"Arabic"},
	"Qatar":                {"Arabic"},
	"Bahrain":              {"Arabic"},
	"Oman":                 {"Arabic"},

	"China":       {"Chinese"},
	"Japan":       {"Japanese"},
	"South Korea": {"Korean"},
	"Korea":       {"Korean"},
	"Taiwan":      {"Chinese"},
	"Hong Kong":   {"Chinese"},
	"Mongolia":    {"Mongolian"},

	"Singapore":   {"English", "Chinese", "Malay"},
	"Malaysia":    {"Malay"},
	"Indonesia":   {"Indonesian"},
	"Thailand":    {"Thai"},
	"Vietnam":     {"Vietnamese"},
	"Philippines": {"Tagalog"},
	"Myanmar":     {"Burmese"},
	"Cambodia":    {"Khmer"},
	"Laos":        {"Lao"},

	"India":      {"Hindi"},
	"Pakistan":   {"Urdu"},
	"Bangladesh": {"Bengali"},
	"Sri Lanka":  {"Sinhala"},
	"Nepal":      {"Nepali"},

	"Australia":   {"English"},
	"New Zealand": {"English"},

	"South Africa": {"English"},
	"Nigeria":      {"English"},
	"Kenya":        {"Swahili"},
	"Egypt":        {"Arabic"},
	"Morocco":      {"Arabic"},
	"Algeria":      {"Arabic"},
	"Tunisia":      {"Arabic"},
}

var englishSpeakingCountries = []string{
	"United States", "United Kingdom", "Canada", "Australia", "Ireland", "New Zealand",
}

var internationalEmployers = []string{
	"Microsoft", "Google", "Amazon", "Meta", "Apple", "IBM", "Oracle",
	"SAP", "Cisco", "Intel", "Facebook", "Netflix", "Uber", "Airbnb",
}

var englishProfessionalVocabulary = []string{
	"engineer", "developer", "manager", "director", "experience", "team",
}

func normalizeLanguage(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := languageAliases[n]; ok {
		return alias
	}
	return n
}

func isProfessional(proficiency string) bool {
	p := strings.ToLower(proficiency)
	return strings.Contains(p, "professional") ||
		strings.Contains(p, "native") ||
		strings.Contains(p, "bilingual") ||
		strings.Contains(p, "fluent")
}

// CheckLanguages infers English and native-language proficiency. An empty
// targetCountry falls back to the country resolved from the profile.
func CheckLanguages(profile *models.LinkedInProfile, targetCountry string) *models.LanguageCheck {
	country := ""
	if strings.TrimSpace(targetCountry) != "" {
		country = NormalizeCountryName(targetCountry)
	}
	if country == "" {
		country = ExtractCountryFromProfile(profile)
	}
	if country == "" {
		country = profile.AddressCountryOnly
	}
	if country == "" {
		country = "Unknown"
	}

	check := &models.LanguageCheck{CurrentCountry: country}
	checkEnglish(profile, check)
	checkNative(profile, country, check)
	check.EnglishInferred = check.EnglishSource.Inferred()
	check.NativeInferred = check.NativeSource.Inferred()

	check.Passed = check.HasEnglishProficiency && check.HasNativeLanguageProficiency

	confidence := 100
	switch {
	case check.EnglishSource == models.EnglishAssumed:
		confidence -= penaltyAssumedEnglish
		check.Notes = append(check.Notes, "English proficiency ASSUMED - insufficient data, requires verification")
	case check.EnglishInferred:
		confidence -= penaltyInferredEnglish
		check.Notes = append(check.Notes, "English proficiency inferred from profile context")
	}
	if check.NativeInferred {
		confidence -= penaltyInferredNative
		check.Notes = append(check.Notes, fmt.Sprintf("%s proficiency inferred from location", check.NativeLanguage))
	}
	check.Confidence = confidence

	switch {
	case check.Passed && len(check.Notes) > 0:
		check.Reasoning = fmt.Sprintf("Language requirements met (%s)", strings.Join(check.Notes, "; "))
	case check.Passed:
		check.Reasoning = "Meets language requirements"
	default:
		var missing []string
		if !check.HasEnglishProficiency {
			missing = append(missing, "English")
		}
		if !check.HasNativeLanguageProficiency {
			missing = append(missing, check.NativeLanguage)
		}
		check.Reasoning = fmt.Sprintf("Unable to verify language requirements: %s", strings.Join(missing, ", "))
	}

	return check
}

func checkEnglish(profile *models.LinkedInProfile, check *models.LanguageCheck) {
	check.EnglishLevel = "Unknown"

	for _, l := range profile.Languages {
		if normalizeLanguage(l.Name) != "english" {
			continue
		}
		switch {
		case isProfessional(l.Proficiency):
			check.HasEnglishProficiency = true
			check.EnglishLevel = l.Proficiency
			check.EnglishSource = models.EnglishExplicit
		case l.Proficiency == "":
			check.HasEnglishProficiency = true
			check.EnglishLevel = levelListedWithoutLevel
			check.EnglishSource = models.EnglishListedWithoutLevel
		default:
			// listed below working proficiency
			check.EnglishLevel = l.Proficiency
			check.EnglishSource = models.EnglishMissing
		}
		return
	}

	var source models.EnglishSource
	switch {
	case hasEnglishEducation(profile):
		source = models.EnglishFromEducation
	case hasInternationalEmployer(profile):
		source = models.EnglishFromInternationalFirm
	case hasEnglishProfileText(profile):
		source = models.EnglishFromProfileText
	case profile.HasProfessionalSignal():
		check.HasEnglishProficiency = true
		check.EnglishLevel = levelAssumed
		check.EnglishSource = models.EnglishAssumed
		return
	default:
		check.EnglishSource = models.EnglishMissing
		return
	}

	check.HasEnglishProficiency = true
	check.EnglishLevel = levelFromContext
	check.EnglishSource = source
}

func checkNative(profile *models.LinkedInProfile, country string, check *models.LanguageCheck) {
	required, ok := countryLanguages[country]
	if !ok {
		check.HasNativeLanguageProficiency = true
		check.NativeLanguage = nativeSkipped
		check.NativeSource = models.NativeSkipped
		return
	}
	check.NativeLanguage = strings.Join(required, "/")

	for _, l := range profile.Languages {
		name := normalizeLanguage(l.Name)
		matched := false
		for _, req := range required {
			if name == normalizeLanguage(req) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		switch {
		case isProfessional(l.Proficiency):
			check.HasNativeLanguageProficiency = true
			check.NativeSource = models.NativeExplicit
		case l.Proficiency == "":
			check.HasNativeLanguageProficiency = true
			check.NativeSource = models.NativeListedWithoutLevel
		default:
			check.NativeSource = models.NativeMissing
		}
		return
	}

	// Not listed: a home address in the country implies the language. Job
	// and free-text locations do not count.
	if profile.AddressCountryOnly == country ||
		(profile.AddressWithCountry != "" && strings.Contains(profile.AddressWithCountry, country)) {
		check.HasNativeLanguageProficiency = true
		check.NativeSource = models.NativeFromResidence
		return
	}
	check.NativeSource = models.NativeMissing
}

func hasEnglishEducation(profile *models.LinkedInProfile) bool {
	for _, edu := range profile.Educations {
		school := edu.School()
		if school == "" {
			continue
		}
		for _, c := range englishSpeakingCountries {
			if strings.Contains(school, c) {
				return true
			}
		}
	}
	return false
}

func hasInternationalEmployer(profile *models.LinkedInProfile) bool {
	for _, exp := range profile.Experiences {
		company := strings.ToLower(exp.CompanyName)
		if company == "" {
			continue
		}
		for _, c := range internationalEmployers {
			if strings.Contains(company, strings.ToLower(c)) {
				return true
			}
		}
	}
	return false
}

func hasEnglishProfileText(profile *models.LinkedInProfile) bool {
	text := strings.ToLower(profile.Headline + " " + profile.About)
	if len(text) <= 50 {
		return false
	}
	for _, word := range englishProfessionalVocabulary {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
