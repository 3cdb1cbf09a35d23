// Package language classifies user input as English, Urdu, or Roman
// Urdu so the assistant can mirror the user's language.
package language

import (
	"regexp"
	"strings"
	"unicode"
)

// Detected language codes.
const (
	English   = "english"
	Urdu      = "urdu"
	RomanUrdu = "roman_urdu"
	Unknown   = "unknown"
)

// romanUrduKeywords are common transliterated Urdu words. A message
// whose word ratio of these reaches 20% is treated as Roman Urdu.
var romanUrduKeywords = map[string]struct{}{
	"kaam": {}, "kaaj": {}, "kam": {}, "karna": {}, "kar": {}, "krna": {},
	"hai": {}, "hy": {}, "ho": {}, "hota": {}, "kr": {}, "kro": {}, "karo": {},
	"karay": {}, "kray": {}, "mein": {}, "mai": {}, "mn": {}, "ap": {},
	"aap": {}, "tum": {}, "tumlog": {}, "hum": {}, "hm": {}, "ye": {},
	"wo": {}, "vo": {}, "iss": {}, "yeh": {}, "woh": {}, "voh": {},
	"kya": {}, "kyun": {}, "kese": {}, "kesa": {}, "kab": {}, "kahan": {},
	"kia": {}, "thoda": {}, "thora": {}, "ziada": {}, "zyada": {},
	"achha": {}, "accha": {}, "behtareen": {}, "waqt": {}, "samay": {},
	"din": {}, "raat": {}, "rat": {}, "subha": {}, "shaam": {}, "sham": {},
	"hain": {}, "tha": {}, "thi": {}, "thay": {}, "hogi": {},
	"chahiye": {}, "chahie": {}, "chahte": {}, "chahti": {}, "chahta": {},
	"jana": {}, "jaana": {}, "ana": {}, "aana": {}, "jao": {}, "jaao": {},
	"ao": {}, "aao": {}, "karunga": {}, "karogi": {}, "karne": {},
	"karney": {}, "maal": {}, "cheez": {}, "chiz": {},
}

// romanUrduNormalizations maps common transliteration variants to their
// standard forms.
var romanUrduNormalizations = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?i)\bkrna\b`), "karna"},
	{regexp.MustCompile(`(?i)\bkrne\b`), "karne"},
	{regexp.MustCompile(`(?i)\bkrega\b`), "karega"},
	{regexp.MustCompile(`(?i)\bkregi\b`), "karegi"},
	{regexp.MustCompile(`(?i)\bhy\b`), "hai"},
	{regexp.MustCompile(`(?i)\bh\b`), "hai"},
	{regexp.MustCompile(`(?i)\bmn\b`), "main"},
	{regexp.MustCompile(`(?i)\bap\b`), "aap"},
	{regexp.MustCompile(`(?i)\btum\b`), "aap"},
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

func isUrduRune(r rune) bool { return r >= 0x0600 && r <= 0x06FF }

// Detect classifies text. Urdu script wins when over 20% of the runes
// fall in the Arabic Unicode block; otherwise a Roman Urdu keyword
// ratio of 20% or more wins; anything else is English.
func Detect(text string) string {
	if text == "" {
		return Unknown
	}

	var urduCount, total int
	for _, r := range text {
		total++
		if isUrduRune(r) {
			urduCount++
		}
	}
	if urduCount > 0 && float64(urduCount)/float64(total) > 0.2 {
		return Urdu
	}

	clean := nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	words := strings.Fields(clean)
	if len(words) == 0 {
		return English
	}

	hits := 0
	for _, w := range words {
		if _, ok := romanUrduKeywords[w]; ok {
			hits++
		}
	}
	if float64(hits)/float64(len(words)) >= 0.2 {
		return RomanUrdu
	}
	return English
}

// Preprocess normalizes a message before it is sent to the model:
// whitespace is collapsed and, for Roman Urdu, common transliteration
// variants are rewritten to their standard forms.
func Preprocess(text string) string {
	if text == "" {
		return text
	}

	cleaned := strings.Join(strings.Fields(text), " ")

	switch Detect(cleaned) {
	case Urdu:
		cleaned = strings.Map(func(r rune) rune {
			if isUrduRune(r) || unicode.IsSpace(r) || strings.ContainsRune(".,!?;:", r) {
				return r
			}
			return -1
		}, cleaned)
	case RomanUrdu:
		for _, n := range romanUrduNormalizations {
			cleaned = n.re.ReplaceAllString(cleaned, n.with)
		}
	}

	return cleaned
}
