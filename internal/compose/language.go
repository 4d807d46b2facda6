package compose

import "strings"

// DefaultLanguage is the sentinel meaning "no translation requested".
const DefaultLanguage = "text"

var languageNames = map[string]string{
	"ar": "Arabic",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fi": "Finnish",
	"fr": "French",
	"hi": "Hindi",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"sv": "Swedish",
	"tr": "Turkish",
	"zh": "Chinese",
}

// preservedTerms stay untranslated in the generated output.
var preservedTerms = []string{
	"API", "REST", "JSON", "XML", "HTTP", "HTTPS", "URL", "URI",
	"SQL", "HTML", "CSS", "ID", "UUID", "UI", "UX", "SDK", "CLI",
}

// LanguageName maps an ISO-like code to its display name; unknown codes are
// uppercased verbatim.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if name, ok := languageNames[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

func languageBlock(selectedLanguage string) string {
	lang := strings.ToLower(strings.TrimSpace(selectedLanguage))
	if lang == "" || lang == DefaultLanguage {
		return ""
	}
	name := LanguageName(lang)
	var b strings.Builder
	b.WriteString("Output language: ")
	b.WriteString(name)
	b.WriteString("\nTranslate all user-facing content of the response into ")
	b.WriteString(name)
	b.WriteString(". Keep the following technical terms and abbreviations in their original form: ")
	b.WriteString(strings.Join(preservedTerms, ", "))
	b.WriteString(".")
	return b.String()
}
