package resolver

import (
	"strings"
	"unicode"
)

// suffixes expands common street and building abbreviations so that
// "160 Elm St." and "160 Elm Street" normalize identically.
var suffixes = map[string]string{
	"st":   "street",
	"str":  "street",
	"ave":  "avenue",
	"av":   "avenue",
	"rd":   "road",
	"blvd": "boulevard",
	"dr":   "drive",
	"ln":   "lane",
	"ct":   "court",
	"pl":   "place",
	"pkwy": "parkway",
	"hwy":  "highway",
	"bldg": "building",
	"ste":  "suite",
}

// Normalize lowercases s, strips punctuation, collapses whitespace, and
// expands street abbreviations.
func Normalize(s string) string {
	return strings.Join(tokens(s), " ")
}

// tokens returns the normalized words of s.
func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		if full, ok := suffixes[f]; ok {
			fields[i] = full
		}
	}
	return fields
}

// numbers returns the numeric tokens of an already-normalized string.
func numbers(normalized string) []string {
	var out []string
	for _, t := range strings.Fields(normalized) {
		if isNumeric(t) {
			out = append(out, t)
		}
	}
	return out
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// containsPhrase reports whether phrase occurs in text on token boundaries.
// Both arguments must be normalized.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
