package workflow

import "sort"

// DefaultLanguage is used when a run does not name one.
const DefaultLanguage = "en"

var supportedLanguages = map[string]string{
	"en": "English",
	"pt": "Portuguese (Brazilian)",
}

// LanguageName returns the display name for code.
func LanguageName(code string) (string, bool) {
	name, ok := supportedLanguages[code]
	return name, ok
}

// Language is a supported language code and its display name.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedLanguages lists every supported language ordered by code.
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(supportedLanguages))
	for code, name := range supportedLanguages {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
