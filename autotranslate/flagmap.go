package autotranslate

// flagLanguages maps country-flag emoji to ISO 639-1 language codes. Common
// duplicate flags resolve to the same code.
var flagLanguages = map[string]string{
	// English
	"🇺🇸": "en",
	"🇬🇧": "en",
	"🇦🇺": "en",
	"🇨🇦": "en",
	"🇳🇿": "en",

	// Spanish
	"🇪🇸": "es",
	"🇲🇽": "es",
	"🇦🇷": "es",
	"🇨🇴": "es",

	// French
	"🇫🇷": "fr",
	"🇧🇪": "fr",
	"🇨🇭": "fr",

	// German
	"🇩🇪": "de",
	"🇦🇹": "de",

	"🇮🇹": "it",

	// Portuguese
	"🇵🇹": "pt",
	"🇧🇷": "pt",

	"🇯🇵": "ja",
	"🇰🇷": "ko",

	// Chinese (Simplified)
	"🇨🇳": "zh",
	"🇭🇰": "zh",
	"🇹🇼": "zh",

	"🇷🇺": "ru",

	// Arabic
	"🇸🇦": "ar",
	"🇪🇬": "ar",

	"🇮🇳": "hi",
	"🇹🇷": "tr",
	"🇳🇱": "nl",
	"🇸🇪": "sv",
	"🇳🇴": "no",
	"🇩🇰": "da",
	"🇫🇮": "fi",
	"🇵🇱": "pl",
	"🇨🇿": "cs",
	"🇭🇺": "hu",
	"🇹🇭": "th",
	"🇻🇳": "vi",
}

// mirrorLanguages are the codes offered when creating a mirror channel.
var mirrorLanguages = []string{
	"es", "fr", "de", "it", "pt", "ja", "ko", "zh", "ru", "ar", "hi", "tr",
	"nl", "sv", "no", "da", "fi", "pl", "cs", "hu", "el", "he", "th", "vi", "id",
}

func flagLanguage(emojiName string) (string, bool) {
	lang, ok := flagLanguages[emojiName]
	return lang, ok
}

func isSupportedMirrorLanguage(code string) bool {
	for _, v := range mirrorLanguages {
		if v == code {
			return true
		}
	}

	return false
}
