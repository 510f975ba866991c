package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// ł does not decompose in NFD so it is mapped by hand.
var strokeReplacer = strings.NewReplacer("ł", "l", "Ł", "L")

// Fold lowercases s and strips its diacritics, "Kort Główny" becomes "kort glowny".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strokeReplacer.Replace(s))
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// NormalizeName folds name and removes all whitespace.
func NormalizeName(name string) string {
	name = Fold(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// CollapseSpace trims s and replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// MatchName returns true if the normalized name contains any of the matchers.
// Matchers are expected to already be normalized.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// ContainsAny returns true if the folded text contains any of the folded keywords.
func ContainsAny(text string, keywords []string) bool {
	text = Fold(text)
	for _, k := range keywords {
		k = Fold(k)
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
