package infer

import (
	"sort"
	"strconv"
	"strings"
)

var knownLanguages = map[string]bool{}

func init() {
	for _, l := range []string{
		"spanish", "mandarin", "cantonese", "vietnamese", "korean", "arabic",
		"russian", "portuguese", "french", "haitian creole", "polish", "bengali",
		"japanese", "italian", "urdu", "hindi", "tagalog", "farsi", "persian",
		"albanian", "somali", "swahili", "amharic", "tigrinya", "oromo", "yoruba",
		"burmese", "nepali", "thai", "khmer", "cambodian", "laotian", "lao",
		"indonesian", "malay", "filipino", "cebuano", "ilocano", "hmong",
		"punjabi", "gujarati", "tamil", "telugu", "malayalam", "kannada", "marathi",
		"turkish", "greek", "german", "dutch", "hebrew", "romanian", "ukrainian",
		"serbian", "croatian", "bosnian", "macedonian", "bulgarian", "czech",
		"slovak", "hungarian", "lithuanian", "latvian", "estonian", "finnish",
		"swedish", "norwegian", "danish", "icelandic",
		"asl", "american sign language", "sign language", "dari", "pashto", "kurdish",
		"armenian", "georgian", "azerbaijani", "uzbek", "kazakh", "mongolian",
	} {
		knownLanguages[l] = true
	}
}

// KnownLanguages returns the curated language names, sorted.
func KnownLanguages() []string {
	out := make([]string, 0, len(knownLanguages))
	for l := range knownLanguages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// IsKnownLanguage reports whether v exactly names a known language.
func IsKnownLanguage(v string) bool {
	return knownLanguages[strings.ToLower(strings.TrimSpace(v))]
}

// LanguageMatch returns 1 for an exact known-language name, 0.8 when a known
// name longer than three letters appears inside v ("Spanish - Medical"), else 0.
func LanguageMatch(v string) float64 {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return 0
	}
	if knownLanguages[s] {
		return 1
	}
	for l := range knownLanguages {
		if len(l) > 3 && strings.Contains(s, l) {
			return 0.8
		}
	}
	return 0
}

// LanguageMatchRate is the fraction of non-null values naming a known
// language, exactly or by substring.
func LanguageMatchRate(values []string) float64 {
	sample := NonNull(values, 0)
	if len(sample) == 0 {
		return 0
	}
	hits := 0
	for _, v := range sample {
		if LanguageMatch(v) > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(sample))
}

// DateParseRate is the fraction of non-null values ParseDate accepts.
func DateParseRate(values []string) float64 {
	sample := NonNull(values, 0)
	if len(sample) == 0 {
		return 0
	}
	hits := 0
	for _, v := range sample {
		if _, ok := ParseDate(v); ok {
			hits++
		}
	}
	return float64(hits) / float64(len(sample))
}

// NumericRate is the fraction of non-null values ParseAmount accepts as a
// non-negative number.
func NumericRate(values []string) float64 {
	sample := NonNull(values, 0)
	if len(sample) == 0 {
		return 0
	}
	hits := 0
	for _, v := range sample {
		if f, ok := ParseAmount(v); ok && f >= 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(sample))
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
