package matching

import (
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/desertthunder/beatporter/internal/models"
	"github.com/hbollon/go-edlib"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/xrash/smetrics"
)

// Metric returns the similarity of two strings in [0, 1].
type Metric func(a, b string) float64

const (
	MetricRatio         = "ratio"
	MetricJaroWinkler   = "jaro-winkler"
	MetricLevenshtein   = "levenshtein"
	MetricWagnerFischer = "wagner-fischer"
	MetricDamerau       = "damerau"
)

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Ratio is the Ratcliff/Obershelp matching-blocks ratio, 2*M/T over runes.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func wagnerFischer(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	d := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return max(0, 1-float64(d)/float64(2*longest))
}

func damerau(a, b string) float64 {
	sim, err := edlib.StringsSimilarity(a, b, edlib.DamerauLevenshtein)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// NewMetric resolves a metric by name. The empty name selects [MetricRatio].
func NewMetric(name string) (Metric, error) {
	switch name {
	case "", MetricRatio:
		return Ratio, nil
	case MetricJaroWinkler:
		jw := metrics.NewJaroWinkler()
		jw.CaseSensitive = true
		return func(a, b string) float64 { return strutil.Similarity(a, b, jw) }, nil
	case MetricLevenshtein:
		lev := metrics.NewLevenshtein()
		lev.CaseSensitive = true
		return func(a, b string) float64 { return strutil.Similarity(a, b, lev) }, nil
	case MetricWagnerFischer:
		return wagnerFischer, nil
	case MetricDamerau:
		return damerau, nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", name)
	}
}

// Scorer computes artist × name × duration similarity between a track and candidates.
type Scorer struct {
	metric Metric
}

// NewScorer returns a Scorer using metric, or [Ratio] when metric is nil.
func NewScorer(metric Metric) *Scorer {
	if metric == nil {
		metric = Ratio
	}
	return &Scorer{metric: metric}
}

// Score returns one score per candidate in input order. It never returns nil.
func (s *Scorer) Score(source models.SourceTrack, candidates []models.Candidate) []float64 {
	scores := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		scores = append(scores, s.score(source, c))
	}
	return scores
}

func (s *Scorer) score(source models.SourceTrack, c models.Candidate) float64 {
	return s.ArtistSimilarity(source.Artists, c.Artists) * s.NameSimilarity(source, c) * s.durationWeight(source, c)
}

// ArtistSimilarity is the best case-insensitive similarity over every pair of artists.
// It is 0 when either list is empty.
func (s *Scorer) ArtistSimilarity(source, candidate []string) float64 {
	best := 0.0
	for _, a := range source {
		for _, b := range candidate {
			best = max(best, s.metric(strings.ToLower(a), strings.ToLower(b)))
		}
	}
	return best
}

// NameSimilarity compares the source name and mix with the candidate's title, case-sensitively.
func (s *Scorer) NameSimilarity(source models.SourceTrack, c models.Candidate) float64 {
	return s.metric(source.NameMix(), c.Name)
}

// DurationFactor is the candidate to source duration ratio, or 0 when the source has no duration.
// It is reported for diagnostics and does not contribute to scores.
func (s *Scorer) DurationFactor(source models.SourceTrack, c models.Candidate) float64 {
	if source.DurationMS <= 0 {
		return 0
	}
	return float64(c.DurationMS) / float64(source.DurationMS)
}

// durationWeight is pinned to 1: duration never changes acceptance.
func (s *Scorer) durationWeight(models.SourceTrack, models.Candidate) float64 {
	return 1
}
