package models

// EnglishSource tells how English proficiency was established. Each
// inference tier is tagged separately so confidence penalties can differ.
type EnglishSource string

const (
	EnglishExplicit              EnglishSource = "explicit"
	EnglishListedWithoutLevel    EnglishSource = "listed_without_level"
	EnglishFromEducation         EnglishSource = "education"
	EnglishFromInternationalFirm EnglishSource = "international_employer"
	EnglishFromProfileText       EnglishSource = "profile_text"
	EnglishAssumed               EnglishSource = "assumed"
	EnglishMissing               EnglishSource = "missing"
)

// Inferred is true for every source except explicit and missing.
func (s EnglishSource) Inferred() bool {
	switch s {
	case EnglishExplicit, EnglishMissing, "":
		return false
	}
	return true
}

type NativeSource string

const (
	NativeExplicit           NativeSource = "explicit"
	NativeListedWithoutLevel NativeSource = "listed_without_level"
	NativeFromResidence      NativeSource = "residence"
	NativeSkipped            NativeSource = "skipped"
	NativeMissing            NativeSource = "missing"
)

func (s NativeSource) Inferred() bool {
	return s == NativeListedWithoutLevel || s == NativeFromResidence
}

// LanguageCheck is advisory input for the evaluator. A failed check never
// rejects a candidate by itself.
type LanguageCheck struct {
	HasEnglishProficiency        bool          `json:"hasEnglishProficiency"`
	EnglishLevel                 string        `json:"englishLevel,omitempty"`
	EnglishInferred              bool          `json:"englishInferred"`
	EnglishSource                EnglishSource `json:"englishSource"`
	HasNativeLanguageProficiency bool          `json:"hasNativeLanguageProficiency"`
	NativeLanguage               string        `json:"nativeLanguage,omitempty"`
	NativeInferred               bool          `json:"nativeInferred"`
	NativeSource                 NativeSource  `json:"nativeSource"`
	CurrentCountry               string        `json:"currentCountry"`
	Passed                       bool          `json:"passed"`
	Reasoning                    string        `json:"reasoning"`
	Confidence                   int           `json:"confidence"`
	Notes                        []string      `json:"notes,omitempty"`
}
