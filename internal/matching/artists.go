package matching

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)
	nonWordRun    = regexp.MustCompile(`[^` + word + `]+`)
	afterAmp      = regexp.MustCompile(`\s&.*$`)
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// splitCamel inserts a space before every upper-case ASCII letter that directly follows a
// word character, so "DJSnake" becomes "D J Snake" and "MoonBoots" becomes "Moon Boots".
func splitCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	prev := utf8.RuneError
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && isWordRune(prev) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// artistRewrites are applied to every artist in turn, each pass appending new spellings.
var artistRewrites = []func(string) string{
	func(s string) string { return parenthetical.ReplaceAllString(s, "") },
	func(s string) string { return nonWordRun.ReplaceAllString(s, " ") },
	func(s string) string { return punctuation.ReplaceAllString(s, "") },
	splitCamel,
	func(s string) string { return afterAmp.ReplaceAllString(s, "") },
}

// ArtistVariants returns the artist strings to search with: the literal artists followed,
// when parse is true, by derived spellings. A string is only added once and order is kept.
func ArtistVariants(artists []string, parse bool) []string {
	out := make([]string, 0, len(artists)*(len(artistRewrites)+1))
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, a := range artists {
		add(a)
	}
	if !parse {
		return out
	}
	for _, rewrite := range artistRewrites {
		for _, a := range artists {
			add(rewrite(a))
		}
	}
	return out
}
