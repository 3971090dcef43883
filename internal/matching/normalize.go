package matching

import (
	"regexp"
	"strings"
)

// word matches the characters Python-style \w accepts, including letters outside ASCII.
const word = `\p{L}\p{N}_`

type transform func(string) string

func remove(pattern string) transform {
	re := regexp.MustCompile(pattern)
	return func(s string) string { return re.ReplaceAllString(s, "") }
}

var spaces = regexp.MustCompile(`\s+`)

// normalizers run in order. Later patterns rely on earlier ones having removed
// the dash-prefixed forms.
var normalizers = []transform{
	remove(`(?i)\s*-\s*?(?:feat|ft)\.\s+[` + word + `\s&]+\)?`),
	remove(`(?i)\s*\(?(?:feat|ft)\.\s+[` + word + `\s&]+\)?`),
	remove(`(?i)\s*-\s*(?:feat|ft)\.\s+[` + word + `\s&]+`),
	remove(`(?i)\s*-\s*Radio Edit`),
	remove(`(?i)\s*\(?Radio Edit\)?`),
	remove(`(?i)\s*-\s*Extended Mix`),
	remove(`(?i)\s*\(?Extended Mix\)?`),
	remove(`(?i)\s*-?\s*Original Mix`),
	remove(`(?i)\s*\(?Extended Vox Mix\)?`),
	remove(`(?i)\s*-?\s*Extended`),
	func(s string) string { return strings.TrimSpace(spaces.ReplaceAllString(s, " ")) },
}

func normalizeOnce(name string) string {
	for _, fn := range normalizers {
		name = fn(name)
	}
	return name
}

// Normalize strips featuring credits, "Radio Edit", "Extended Mix", "Original Mix" and
// "Extended" annotations from a track name and collapses whitespace.
//
// The pipeline is repeated until the output is stable, so Normalize(Normalize(s)) == Normalize(s).
func Normalize(name string) string {
	for {
		next := normalizeOnce(name)
		if next == name {
			return next
		}
		name = next
	}
}
