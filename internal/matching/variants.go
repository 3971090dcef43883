package matching

import (
	"regexp"
	"strings"

	"github.com/desertthunder/beatporter/internal/models"
)

var (
	featSuffix  = regexp.MustCompile(`\s*(?:Feat|feat|Ft|ft)\. [` + word + `\s]*$`)
	nonWord     = regexp.MustCompile(`[^` + word + `]`)
	punctuation = regexp.MustCompile(`[^` + word + `\s]`)
	originalMix = regexp.MustCompile(`[Oo]riginal [Mm]ix`)
	remixWord   = regexp.MustCompile(`[Rr]emix`)
	mixWord     = regexp.MustCompile(`[Mm]ix`)
)

const (
	extendedMix  = "Extended Mix"
	radioEditMix = "Radio Edit"
)

// VariantCount is the number of variants produced by [GenerateVariants] when parsing is enabled.
const VariantCount = 8

// Variant rewrites a track. Implementations receive a clone and may modify it freely.
type Variant func(t models.SourceTrack) models.SourceTrack

func stripFeat(t models.SourceTrack) models.SourceTrack {
	t.Name = featSuffix.ReplaceAllString(t.Name, "")
	return t
}

func spaceNonWord(t models.SourceTrack) models.SourceTrack {
	t.Name = nonWord.ReplaceAllString(t.Name, " ")
	return t
}

func dropPunctuation(t models.SourceTrack) models.SourceTrack {
	t.Name = punctuation.ReplaceAllString(t.Name, "")
	return t
}

func isDefaultMix(mix string) bool {
	return originalMix.MatchString(mix) || mix == extendedMix
}

func blankDefaultMix(t models.SourceTrack) models.SourceTrack {
	if isDefaultMix(t.Mix) {
		t.Mix = ""
	}
	return t
}

func radioEditDefaultMix(t models.SourceTrack) models.SourceTrack {
	if isDefaultMix(t.Mix) {
		t.Mix = radioEditMix
	}
	return t
}

// swapRemix turns "Remix" into "mix" and then every "mix" into "Remix", so "Extended Mix"
// becomes "Extended Remix" while "Dub Remix" is unchanged.
func swapRemix(t models.SourceTrack) models.SourceTrack {
	t.Mix = remixWord.ReplaceAllString(t.Mix, "mix")
	t.Mix = mixWord.ReplaceAllString(t.Mix, "Remix")
	return t
}

func dropMixWord(t models.SourceTrack) models.SourceTrack {
	t.Mix = strings.TrimSpace(mixWord.ReplaceAllString(t.Mix, ""))
	return t
}

func normalizedName(t models.SourceTrack) models.SourceTrack {
	t.Name = Normalize(t.Name)
	t.Mix = ""
	return t
}

func chain(fns ...Variant) Variant {
	return func(t models.SourceTrack) models.SourceTrack {
		for _, fn := range fns {
			t = fn(t)
		}
		return t
	}
}

// variants lists the rewrites after the unmodified original, in search order.
var variants = []Variant{
	chain(stripFeat, spaceNonWord),
	chain(stripFeat, blankDefaultMix),
	chain(stripFeat, dropPunctuation),
	chain(stripFeat, dropPunctuation, swapRemix),
	chain(stripFeat, dropPunctuation, dropMixWord),
	chain(stripFeat, radioEditDefaultMix),
	normalizedName,
}

// GenerateVariants returns the search variants of t. The first element is always an
// unmodified copy of t. When parse is false it is the only element.
func GenerateVariants(t models.SourceTrack, parse bool) []models.SourceTrack {
	out := []models.SourceTrack{t.Clone()}
	if !parse {
		return out
	}
	for _, fn := range variants {
		out = append(out, fn(t.Clone()))
	}
	return out
}
