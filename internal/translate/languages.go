package translate

// SupportedLanguages is the closed set of translation targets, keyed by the
// code the backend expects.
var SupportedLanguages = map[string]string{
	"ko":    "Korean",
	"en":    "English",
	"id":    "Indonesian",
	"vi":    "Vietnamese",
	"ja":    "Japanese",
	"zh-CN": "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
	"th":    "Thai",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"ru":    "Russian",
	"ar":    "Arabic",
	"hi":    "Hindi",
}

// IsSupported reports whether code is a valid target language.
func IsSupported(code string) bool {
	_, ok := SupportedLanguages[code]
	return ok
}

// LangAuto asks the backend to detect the source language itself.
const LangAuto = "auto"
