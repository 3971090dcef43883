package matching

import (
	"fmt"
	"strings"

	"github.com/desertthunder/beatporter/internal/models"
)

// Shape builds one structured query. It returns false when a metadata field the shape
// needs is empty.
type Shape struct {
	Name  string
	Build func(nameMix, artist string, t models.SourceTrack) (string, bool)
}

// quote strips characters that would end a field:"value" term early.
func quote(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, " "))
}

func field(key, value string) string {
	return fmt.Sprintf(`%s:"%s"`, key, quote(value))
}

// Shapes are issued most specific first.
var Shapes = []Shape{
	{
		Name: "track_album_label",
		Build: func(nameMix, artist string, t models.SourceTrack) (string, bool) {
			if quote(t.Release) == "" || quote(t.Label) == "" {
				return "", false
			}
			return strings.Join([]string{field("track", nameMix), field("artist", artist), field("album", t.Release), field("label", t.Label)}, " "), true
		},
	},
	{
		Name: "track_label",
		Build: func(nameMix, artist string, t models.SourceTrack) (string, bool) {
			if quote(t.Label) == "" {
				return "", false
			}
			return strings.Join([]string{field("track", nameMix), field("artist", artist), field("label", t.Label)}, " "), true
		},
	},
	{
		Name: "track_album",
		Build: func(nameMix, artist string, t models.SourceTrack) (string, bool) {
			if quote(t.Release) == "" {
				return "", false
			}
			return strings.Join([]string{field("track", nameMix), field("artist", artist), field("album", t.Release)}, " "), true
		},
	},
	{
		Name: "track",
		Build: func(nameMix, artist string, _ models.SourceTrack) (string, bool) {
			return field("track", nameMix) + " " + field("artist", artist), true
		},
	},
}

// Query is one planned search.
type Query struct {
	Text    string `json:"text"`
	Artist  string `json:"artist"`
	Variant int    `json:"variant"`
	Shape   string `json:"shape"`
	// Track is the variant the response is scored against.
	Track models.SourceTrack `json:"-"`
}

// Plan enumerates the queries for t in search order: artist strings, then variants, then
// shapes. Repeated query texts are dropped, so len(Plan) never exceeds
// len(artists) × len(variants) × len(Shapes).
func Plan(t models.SourceTrack, parse bool) []Query {
	artists := ArtistVariants(t.Artists, parse)
	tracks := GenerateVariants(t, parse)

	seen := make(map[string]bool)
	plan := make([]Query, 0, len(artists)*len(tracks)*len(Shapes))
	for _, artist := range artists {
		for vi, v := range tracks {
			nameMix := v.NameMix()
			if quote(nameMix) == "" {
				continue
			}
			for _, shape := range Shapes {
				text, ok := shape.Build(nameMix, artist, v)
				if !ok || seen[text] {
					continue
				}
				seen[text] = true
				plan = append(plan, Query{Text: text, Artist: artist, Variant: vi, Shape: shape.Name, Track: v})
			}
		}
	}
	return plan
}
